package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AddRequest records an earning event. Exactly one of GithubID or UserID must
// be set; additions keyed by GithubID stay unconsumed until the user signs up.
type AddRequest struct {
	GithubID     string
	UserID       snowflake.ID
	Amount       int64
	Reason       AdditionReason
	Meta         map[string]any
	AdoptedProbe snowflake.ID
	// DedupKey makes the addition idempotent: a second insert with the same
	// key is a no-op.
	DedupKey string
}

type Service interface {
	Add(ctx context.Context, req AddRequest) (created bool, err error)
	// ConsumePreSignup moves unconsumed additions recorded under githubID into
	// the user's balance, exactly once. Runs inside the caller's transaction.
	ConsumePreSignup(ctx context.Context, tx *gorm.DB, githubID string, userID snowflake.ID) (int64, error)
	Deduct(ctx context.Context, userID snowflake.ID, amount int64) error
	BalanceOf(ctx context.Context, userID snowflake.ID) (int64, error)
	Timeline(ctx context.Context, userID snowflake.ID, limit int) ([]TimelineEntry, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReason       = errors.New("invalid_reason")
	ErrInvalidMeta         = errors.New("invalid_meta")
	ErrInvalidAdoptedProbe = errors.New("invalid_adopted_probe")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)
