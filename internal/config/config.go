package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisURL string

	// GitHub API access. The service token is used for sponsor reconciliation
	// and as the fallback when a user token is rejected upstream.
	GitHubServiceToken  string
	GitHubWebhookSecret string
	// Comma-separated "fromID:toID" pairs crediting a sponsor to a different
	// target account (manual migration overrides).
	SponsorRedirects string

	GeonamesURL      string
	GeonamesUsername string
	GazetteerCSVPath string

	ControlAPIURL string

	// TokenSalt is prepended to bearer token values before hashing so a
	// leaked tokens table cannot be brute-forced offline.
	TokenSalt string

	SeedDevData bool
}

type LoggerConfig struct {
	Level string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "globalping-backoffice"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "globalping"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisURL: strings.TrimSpace(getenv("REDIS_URL", "")),

		GitHubServiceToken:  strings.TrimSpace(getenv("GITHUB_SERVICE_TOKEN", "")),
		GitHubWebhookSecret: strings.TrimSpace(getenv("GITHUB_WEBHOOK_SECRET", "")),
		SponsorRedirects:    strings.TrimSpace(getenv("SPONSOR_REDIRECTS", "")),

		GeonamesURL:      getenv("GEONAMES_URL", "http://api.geonames.org"),
		GeonamesUsername: strings.TrimSpace(getenv("GEONAMES_USERNAME", "")),
		GazetteerCSVPath: getenv("GAZETTEER_CSV_PATH", "data/cities.csv"),

		ControlAPIURL: getenv("CONTROL_API_URL", "https://api.globalping.io"),

		TokenSalt: getenv("TOKEN_SALT", "globalping"),

		SeedDevData: getenvBool("SEED_DEV_DATA", false),
	}
}

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

// ParseSponsorRedirects parses the SPONSOR_REDIRECTS value into a lookup map.
func ParseSponsorRedirects(raw string) map[int64]int64 {
	out := make(map[int64]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		from, errFrom := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		to, errTo := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if errFrom != nil || errTo != nil {
			continue
		}
		out[from] = to
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
