package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *Token) error
	GetByValue(ctx context.Context, db *gorm.DB, hashed string) (*Token, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Token, error)
	DeleteByID(ctx context.Context, db *gorm.DB, userID, tokenID snowflake.ID) (int64, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, tokenID snowflake.ID, at time.Time) error
	ListApplications(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Application, error)
	DeleteByApp(ctx context.Context, db *gorm.DB, userID, appID snowflake.ID) (int64, error)
}
