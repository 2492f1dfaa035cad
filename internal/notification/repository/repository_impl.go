package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, user_id, item, subject, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.UserID,
		notification.Item,
		notification.Subject,
		notification.Message,
		notification.CreatedAt,
	).Error
}

func (r *repo) ExistsNewerThan(ctx context.Context, db *gorm.DB, userID snowflake.ID, item, subject string, newerThan time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND item = ? AND subject = ? AND created_at > ?", userID, item, subject, newerThan).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}
