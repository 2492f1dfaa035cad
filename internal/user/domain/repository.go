package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	GetByGithubID(ctx context.Context, db *gorm.DB, githubID string) (*User, error)
	GetByAdoptionToken(ctx context.Context, db *gorm.DB, token string) (*User, error)
	Save(ctx context.Context, db *gorm.DB, user *User) error
}
