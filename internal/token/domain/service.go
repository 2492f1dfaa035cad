package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrTokenNotFound  = errors.New("token_not_found")
	ErrTokenExpired   = errors.New("token_expired")
	ErrAppNotFound    = errors.New("app_not_found")
	ErrInvalidOrigin  = errors.New("invalid_origin")
	ErrInvalidName    = errors.New("invalid_name")
	ErrNothingRevoked = errors.New("nothing_revoked")
)

// CreateRequest describes a new bearer token. Origins entries must be
// http(s) URLs; they are normalized to scheme://host before storage.
type CreateRequest struct {
	UserID  snowflake.ID
	Name    string
	Origins []string
	Expire  *time.Time
	AppID   *snowflake.ID
	Type    TokenType
}

type Service interface {
	// Create mints a token and returns it with the plaintext value. The
	// plaintext is not recoverable afterwards.
	Create(ctx context.Context, req CreateRequest) (*Token, string, error)
	// Authenticate resolves a presented plaintext token to its row,
	// rejecting expired tokens and touching last_used.
	Authenticate(ctx context.Context, value string) (*Token, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Token, error)
	Delete(ctx context.Context, userID, tokenID snowflake.ID) error
	// ListApplications returns the distinct apps behind the user's tokens.
	ListApplications(ctx context.Context, userID snowflake.ID) ([]Application, error)
	// Revoke deletes all of the user's tokens issued to the given app.
	Revoke(ctx context.Context, userID, appID snowflake.ID) error
}
