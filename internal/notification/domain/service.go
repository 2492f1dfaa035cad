package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// NotifyRequest creates a notification unless one for the same (item, subject)
// already exists newer than NewerThan. A zero NewerThan disables deduplication.
type NotifyRequest struct {
	UserID    snowflake.ID
	Item      string
	Subject   string
	Message   string
	NewerThan time.Time
}

type Service interface {
	Notify(ctx context.Context, req NotifyRequest) (created bool, err error)
	ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]Notification, error)
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidItem    = errors.New("invalid_item")
	ErrInvalidSubject = errors.New("invalid_subject")
)
