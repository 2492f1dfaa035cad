package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *Notification) error
	ExistsNewerThan(ctx context.Context, db *gorm.DB, userID snowflake.ID, item, subject string, newerThan time.Time) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Notification, error)
}
