package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) GetByGithubID(ctx context.Context, db *gorm.DB, githubID string) (*domain.User, error) {
	return r.findOne(ctx, db, "github_id = ?", githubID)
}

func (r *repo) GetByAdoptionToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	return r.findOne(ctx, db, "adoption_token = ?", token)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where(query, arg).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Save(user).Error
}
