package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide JSON logger and installs it as the zap global.
// Level accepts zap's textual levels; empty means info.
func New(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if v := strings.TrimSpace(level); v != "" {
		parsed, err := zapcore.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", v, err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	log, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}
