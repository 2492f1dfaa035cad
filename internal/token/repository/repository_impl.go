package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/token/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *domain.Token) error {
	return db.WithContext(ctx).Create(token).Error
}

func (r *repo) GetByValue(ctx context.Context, db *gorm.DB, hashed string) (*domain.Token, error) {
	var token domain.Token
	err := db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("value = ?", hashed).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Token, error) {
	var tokens []domain.Token
	err := db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) DeleteByID(ctx context.Context, db *gorm.DB, userID, tokenID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", tokenID, userID).
		Delete(&domain.Token{})
	return result.RowsAffected, result.Error
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, tokenID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("id = ?", tokenID).
		Update("last_used", at).Error
}

func (r *repo) ListApplications(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Application, error) {
	var applications []domain.Application
	err := db.WithContext(ctx).
		Raw(`SELECT a.id, a.name, a.owner_name, a.owner_url, MAX(t.created_at) AS authorized_at
		     FROM apps a
		     JOIN tokens t ON t.app_id = a.id
		     WHERE t.user_id = ?
		     GROUP BY a.id, a.name, a.owner_name, a.owner_url
		     ORDER BY authorized_at DESC`, userID).
		Scan(&applications).Error
	if err != nil {
		return nil, err
	}
	return applications, nil
}

func (r *repo) DeleteByApp(ctx context.Context, db *gorm.DB, userID, appID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("user_id = ? AND app_id = ?", userID, appID).
		Delete(&domain.Token{})
	return result.RowsAffected, result.Error
}
