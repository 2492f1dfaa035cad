package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/config"
	"github.com/globalping/backoffice/internal/token/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	salt  string
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("token.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		salt:  p.Config.TokenSalt,
	}
}

const tokenBytes = 32

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Token, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", domain.ErrInvalidName
	}

	origins, err := normalizeOrigins(req.Origins)
	if err != nil {
		return nil, "", err
	}
	originsJSON, err := json.Marshal(origins)
	if err != nil {
		return nil, "", err
	}

	tokenType := req.Type
	if tokenType == "" {
		tokenType = domain.TypeAccess
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	plaintext := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)

	now := s.clock.Now()
	token := &domain.Token{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		AppID:     req.AppID,
		Name:      name,
		Value:     HashValue(s.salt, plaintext),
		Origins:   originsJSON,
		Expire:    req.Expire,
		TokenType: tokenType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, token); err != nil {
		return nil, "", err
	}
	return token, plaintext, nil
}

func (s *Service) Authenticate(ctx context.Context, value string) (*domain.Token, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.ErrTokenNotFound
	}

	token, err := s.repo.GetByValue(ctx, s.db, HashValue(s.salt, value))
	if err != nil {
		return nil, err
	}
	if token.Expire != nil && token.Expire.Before(s.clock.Now()) {
		return nil, domain.ErrTokenExpired
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, token.ID, s.clock.Now()); err != nil {
		s.log.Warn("failed to update token last_used", zap.Int64("token_id", int64(token.ID)), zap.Error(err))
	}
	return token, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Token, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) Delete(ctx context.Context, userID, tokenID snowflake.ID) error {
	affected, err := s.repo.DeleteByID(ctx, s.db, userID, tokenID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (s *Service) ListApplications(ctx context.Context, userID snowflake.ID) ([]domain.Application, error) {
	return s.repo.ListApplications(ctx, s.db, userID)
}

func (s *Service) Revoke(ctx context.Context, userID, appID snowflake.ID) error {
	affected, err := s.repo.DeleteByApp(ctx, s.db, userID, appID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNothingRevoked
	}
	s.log.Info("revoked application tokens",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("app_id", int64(appID)),
		zap.Int64("tokens", affected),
	)
	return nil
}

// HashValue produces the stored form of a bearer token value.
func HashValue(salt, value string) string {
	sum := sha256.Sum256([]byte(salt + value))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashSecret hashes an app client secret for storage.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret checks a presented client secret against any of the app's
// stored hashes.
func VerifySecret(app *domain.App, secret string) bool {
	var hashes []string
	if len(app.Secrets) > 0 {
		if err := json.Unmarshal(app.Secrets, &hashes); err != nil {
			return false
		}
	}
	for _, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil {
			return true
		}
	}
	return false
}

// normalizeOrigins validates the allow-list and reduces each entry to
// scheme://host[:port].
func normalizeOrigins(origins []string) ([]string, error) {
	out := make([]string, 0, len(origins))
	seen := map[string]struct{}{}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		parsed, err := url.Parse(origin)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOrigin, origin)
		}
		normalized := parsed.Scheme + "://" + strings.ToLower(parsed.Host)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}
