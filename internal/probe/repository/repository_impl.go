package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/probe/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, probe *domain.Probe) error {
	return db.WithContext(ctx).Create(probe).Error
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Probe, error) {
	var probe domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("id = ?", id).
		First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProbeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &probe, nil
}

func (r *repo) GetByIP(ctx context.Context, db *gorm.DB, ip string) (*domain.Probe, error) {
	var probe domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("ip = ?", ip).
		First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProbeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &probe, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Probe, error) {
	var probes []domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&probes).Error
	if err != nil {
		return nil, err
	}
	return probes, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, probe *domain.Probe) error {
	return db.WithContext(ctx).Save(probe).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Probe{}).Error
}

func (r *repo) ListAdoptedOffline(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Probe, error) {
	var probes []domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("user_id IS NOT NULL AND status = ? AND last_sync_date <= ?", domain.StatusOffline, cutoff).
		Order("last_sync_date asc").
		Find(&probes).Error
	if err != nil {
		return nil, err
	}
	return probes, nil
}

func (r *repo) ListAdoptedOutdated(ctx context.Context, db *gorm.DB) ([]domain.Probe, error) {
	var probes []domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("user_id IS NOT NULL AND status = ? AND is_outdated = ?", domain.StatusReady, true).
		Find(&probes).Error
	if err != nil {
		return nil, err
	}
	return probes, nil
}

func (r *repo) ListAdoptedOnline(ctx context.Context, db *gorm.DB) ([]domain.Probe, error) {
	var probes []domain.Probe
	err := db.WithContext(ctx).
		Model(&domain.Probe{}).
		Where("user_id IS NOT NULL AND status = ?", domain.StatusReady).
		Find(&probes).Error
	if err != nil {
		return nil, err
	}
	return probes, nil
}
