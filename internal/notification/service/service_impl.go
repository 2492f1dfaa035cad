package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) (bool, error) {
	if req.UserID == 0 {
		return false, domain.ErrInvalidUser
	}
	item := strings.TrimSpace(req.Item)
	if item == "" {
		return false, domain.ErrInvalidItem
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return false, domain.ErrInvalidSubject
	}

	if !req.NewerThan.IsZero() {
		exists, err := s.repo.ExistsNewerThan(ctx, s.db, req.UserID, item, subject, req.NewerThan)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	notification := domain.Notification{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Item:      item,
		Subject:   subject,
		Message:   req.Message,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Notification, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, s.db, userID, limit)
}
