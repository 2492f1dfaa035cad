package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUserNotFound     = errors.New("user_not_found")
	ErrUserExists       = errors.New("user_exists")
	ErrInvalidGithubID  = errors.New("invalid_github_id")
	ErrInvalidPrefix    = errors.New("invalid_default_prefix")
	ErrInvalidUserType  = errors.New("invalid_user_type")
	ErrInvalidToken     = errors.New("invalid_adoption_token")
	ErrGithubSyncFailed = errors.New("github_sync_failed")
)

// CreateRequest registers a new account from a GitHub sign-in. UserToken is
// the OAuth token from the sign-in flow, used to read the user's
// organizations; it may be empty.
type CreateRequest struct {
	GithubID       string
	GithubUsername string
	UserToken      string
}

type Service interface {
	// Create registers the user, assigns a fresh adoption token and moves
	// any credits earned before sign-up into the new balance.
	Create(ctx context.Context, req CreateRequest) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetByGithubID(ctx context.Context, githubID string) (*User, error)
	GetByAdoptionToken(ctx context.Context, token string) (*User, error)
	// SyncGithub refreshes the username and organization list from GitHub.
	SyncGithub(ctx context.Context, id snowflake.ID, userToken string) (*User, error)
	// UpdateSettings changes the tag prefix and account type. The prefix
	// must be the user's GitHub username or one of their organizations.
	UpdateSettings(ctx context.Context, id snowflake.ID, defaultPrefix *string, userType *UserType) (*User, error)
	// RegenerateToken replaces the adoption token, invalidating the old one.
	RegenerateToken(ctx context.Context, id snowflake.ID) (string, error)
}
