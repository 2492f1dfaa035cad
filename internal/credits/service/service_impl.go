package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) creditsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credits.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Add(ctx context.Context, req creditsdomain.AddRequest) (bool, error) {
	if req.Amount <= 0 {
		return false, creditsdomain.ErrInvalidAmount
	}
	if req.GithubID == "" && req.UserID == 0 {
		return false, creditsdomain.ErrInvalidUser
	}
	if err := validateReasonMeta(req); err != nil {
		return false, err
	}

	meta := datatypes.JSONMap(req.Meta)
	if meta == nil {
		meta = datatypes.JSONMap{}
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		var githubID *string
		if req.GithubID != "" {
			githubID = &req.GithubID
		}
		var userID *snowflake.ID
		if req.UserID != 0 {
			userID = &req.UserID
		}
		var adoptedProbe *snowflake.ID
		if req.AdoptedProbe != 0 {
			adoptedProbe = &req.AdoptedProbe
		}
		var dedupKey *string
		if req.DedupKey != "" {
			dedupKey = &req.DedupKey
		}

		// Additions applied to an existing balance are consumed on insert;
		// pre-signup rows stay unconsumed until account creation.
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO credits_additions (
				id, github_id, user_id, amount, reason, meta, adopted_probe, consumed, dedup_key, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (dedup_key) DO NOTHING`,
			s.genID.Generate(),
			githubID,
			userID,
			req.Amount,
			string(req.Reason),
			meta,
			adoptedProbe,
			req.UserID != 0,
			dedupKey,
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true

		if req.UserID != 0 {
			return s.applyToBalance(ctx, tx, req.UserID, req.Amount, now)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		creditsGranted.Add(float64(req.Amount))
	}
	return created, nil
}

func (s *Service) ConsumePreSignup(ctx context.Context, tx *gorm.DB, githubID string, userID snowflake.ID) (int64, error) {
	if githubID == "" || userID == 0 {
		return 0, creditsdomain.ErrInvalidUser
	}

	claim := tx.WithContext(ctx).Exec(
		`UPDATE credits_additions
		 SET user_id = ?, consumed = TRUE
		 WHERE github_id = ? AND consumed = FALSE AND user_id IS NULL`,
		userID,
		githubID,
	)
	if claim.Error != nil {
		return 0, claim.Error
	}
	if claim.RowsAffected == 0 {
		return 0, nil
	}

	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM credits_additions
		 WHERE github_id = ? AND user_id = ? AND consumed = TRUE`,
		githubID,
		userID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	if err := s.applyToBalance(ctx, tx, userID, total, s.clock.Now()); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) Deduct(ctx context.Context, userID snowflake.ID, amount int64) error {
	if userID == 0 {
		return creditsdomain.ErrInvalidUser
	}
	if amount <= 0 {
		return creditsdomain.ErrInvalidAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		result := tx.WithContext(ctx).Exec(
			`UPDATE credits SET amount = amount - ?, updated_at = ? WHERE user_id = ? AND amount >= ?`,
			amount,
			now,
			userID,
			amount,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditsdomain.ErrInsufficientCredits
		}

		return tx.WithContext(ctx).Exec(
			`INSERT INTO credits_deductions (id, user_id, amount, created_at) VALUES (?, ?, ?, ?)`,
			s.genID.Generate(),
			userID,
			amount,
			now,
		).Error
	})
}

func (s *Service) BalanceOf(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, creditsdomain.ErrInvalidUser
	}
	var amount int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM credits WHERE user_id = ?`,
		userID,
	).Scan(&amount).Error
	return amount, err
}

func (s *Service) Timeline(ctx context.Context, userID snowflake.ID, limit int) ([]creditsdomain.TimelineEntry, error) {
	if userID == 0 {
		return nil, creditsdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var additions []creditsdomain.CreditsAddition
	if err := s.db.WithContext(ctx).
		Model(&creditsdomain.CreditsAddition{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&additions).Error; err != nil {
		return nil, err
	}

	var deductions []creditsdomain.CreditsDeduction
	if err := s.db.WithContext(ctx).
		Model(&creditsdomain.CreditsDeduction{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&deductions).Error; err != nil {
		return nil, err
	}

	entries := make([]creditsdomain.TimelineEntry, 0, len(additions)+len(deductions))
	for _, a := range additions {
		entries = append(entries, creditsdomain.TimelineEntry{
			Type:      "addition",
			Amount:    a.Amount,
			Reason:    a.Reason,
			Meta:      a.Meta,
			CreatedAt: a.CreatedAt,
		})
	}
	for _, d := range deductions {
		entries = append(entries, creditsdomain.TimelineEntry{
			Type:      "deduction",
			Amount:    -d.Amount,
			CreatedAt: d.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Service) applyToBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO credits (id, user_id, amount, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET amount = credits.amount + excluded.amount, updated_at = excluded.updated_at`,
		s.genID.Generate(),
		userID,
		amount,
		now,
	).Error
}

func validateReasonMeta(req creditsdomain.AddRequest) error {
	switch req.Reason {
	case creditsdomain.ReasonOneTimeSponsorship,
		creditsdomain.ReasonRecurringSponsorship,
		creditsdomain.ReasonTierChanged:
		if _, ok := req.Meta["amountInDollars"]; !ok {
			return creditsdomain.ErrInvalidMeta
		}
	case creditsdomain.ReasonAdoptedProbe:
		if req.AdoptedProbe == 0 {
			return creditsdomain.ErrInvalidAdoptedProbe
		}
		id, ok := req.Meta["id"]
		if !ok || fmt.Sprint(id) != req.AdoptedProbe.String() {
			return creditsdomain.ErrInvalidAdoptedProbe
		}
	case creditsdomain.ReasonOther:
	default:
		return creditsdomain.ErrInvalidReason
	}
	return nil
}
