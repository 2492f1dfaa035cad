package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/config"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"github.com/globalping/backoffice/internal/gh"
	sponsordomain "github.com/globalping/backoffice/internal/sponsor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	CreditsSvc creditsdomain.Service
	GitHub     gh.Client
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	creditsSvc    creditsdomain.Service
	github        gh.Client
	webhookSecret string
	// redirects credits a sponsoring account to a different github id
	// (manual migration overrides).
	redirects map[int64]int64
}

func New(p Params) sponsordomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("sponsor.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		creditsSvc:    p.CreditsSvc,
		github:        p.GitHub,
		webhookSecret: p.Config.GitHubWebhookSecret,
		redirects:     config.ParseSponsorRedirects(p.Config.SponsorRedirects),
	}
}

type webhookPayload struct {
	Action  string `json:"action"`
	Changes struct {
		Tier struct {
			From struct {
				MonthlyPriceInDollars int64 `json:"monthly_price_in_dollars"`
			} `json:"from"`
		} `json:"tier"`
	} `json:"changes"`
	Sponsorship struct {
		CreatedAt time.Time `json:"created_at"`
		Sponsor   struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
		} `json:"sponsor"`
		Tier struct {
			MonthlyPriceInDollars int64 `json:"monthly_price_in_dollars"`
			IsOneTime             bool  `json:"is_one_time"`
		} `json:"tier"`
	} `json:"sponsorship"`
}

// VerifySignature checks the X-Hub-Signature-256 HMAC over the raw body.
// Comparison is constant-time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !VerifySignature(s.webhookSecret, payload, signature) {
		return sponsordomain.ErrInvalidSignature
	}

	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return sponsordomain.ErrInvalidPayload
	}
	if event.Sponsorship.Sponsor.ID == 0 {
		return sponsordomain.ErrInvalidPayload
	}

	githubID := s.redirectedID(event.Sponsorship.Sponsor.ID)
	login := event.Sponsorship.Sponsor.Login
	dollars := event.Sponsorship.Tier.MonthlyPriceInDollars
	createdAt := event.Sponsorship.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	switch event.Action {
	case "created", "tier_changed":
		webhookEvents.WithLabelValues(event.Action).Inc()
	default:
		// Unknown actions share one label to keep cardinality bounded.
		webhookEvents.WithLabelValues("other").Inc()
	}

	switch event.Action {
	case "created":
		if event.Sponsorship.Tier.IsOneTime {
			return s.creditSponsorship(ctx, githubID, dollars,
				creditsdomain.ReasonOneTimeSponsorship,
				fmt.Sprintf("onetime:%d:%s", githubID, createdAt.Format(time.RFC3339)))
		}
		if err := s.upsertSponsor(ctx, githubID, login, dollars, createdAt); err != nil {
			return err
		}
		return s.creditSponsorship(ctx, githubID, dollars,
			creditsdomain.ReasonRecurringSponsorship,
			recurringDedupKey(githubID, createdAt))
	case "tier_changed":
		previous := event.Changes.Tier.From.MonthlyPriceInDollars
		if err := s.updateSponsorAmount(ctx, githubID, dollars); err != nil {
			return err
		}
		if delta := dollars - previous; delta > 0 {
			return s.creditSponsorship(ctx, githubID, delta,
				creditsdomain.ReasonTierChanged,
				fmt.Sprintf("tier:%d:%s", githubID, createdAt.Format(time.RFC3339)))
		}
		return nil
	default:
		return sponsordomain.ErrEventIgnored
	}
}

// Reconcile runs from the scheduler. It deletes local rows whose sponsorship
// is gone upstream, awards credits for every full 30-day period elapsed since
// last_earning_date, and back-fills sponsors the webhook path missed.
// Partial periods never advance last_earning_date, so a rerun within the same
// window grants nothing.
func (s *Service) Reconcile(ctx context.Context) error {
	ghSponsors, err := s.github.ListSponsors(ctx)
	if err != nil {
		return err
	}

	active := make(map[int64]gh.Sponsor, len(ghSponsors))
	for _, sponsor := range ghSponsors {
		if sponsor.IsActive && !sponsor.IsOneTime {
			active[s.redirectedID(sponsor.GithubID)] = sponsor
		}
	}

	var local []sponsordomain.Sponsor
	if err := s.db.WithContext(ctx).Find(&local).Error; err != nil {
		return err
	}

	now := s.clock.Now()
	seen := make(map[int64]bool, len(local))
	for _, row := range local {
		seen[row.GithubID] = true

		upstream, ok := active[row.GithubID]
		if !ok {
			if err := s.deleteSponsor(ctx, row.GithubID); err != nil {
				return err
			}
			continue
		}

		if upstream.MonthlyDollars != row.MonthlyAmount {
			if err := s.updateSponsorAmount(ctx, row.GithubID, upstream.MonthlyDollars); err != nil {
				return err
			}
			row.MonthlyAmount = upstream.MonthlyDollars
		}

		periods := int64(now.Sub(row.LastEarningDate) / sponsordomain.EarningPeriod)
		if periods < 1 {
			continue
		}
		for i := int64(1); i <= periods; i++ {
			periodStart := row.LastEarningDate.Add(time.Duration(i) * sponsordomain.EarningPeriod)
			if err := s.creditSponsorship(ctx, row.GithubID, row.MonthlyAmount,
				creditsdomain.ReasonRecurringSponsorship,
				recurringDedupKey(row.GithubID, periodStart)); err != nil {
				return err
			}
		}
		if err := s.advanceEarningDate(ctx, row.GithubID, row.LastEarningDate.Add(time.Duration(periods)*sponsordomain.EarningPeriod)); err != nil {
			return err
		}
	}

	for githubID, upstream := range active {
		if seen[githubID] {
			continue
		}
		start := upstream.TierSelectedAt
		if start.IsZero() {
			start = now
		}
		// Back-fill: one grant per period since the tier was first selected,
		// including the initial one the webhook would have issued. Grants run
		// before the sponsor row is written, so a failure mid-loop leaves no
		// row and the next run retries; the dedup keys absorb the overlap.
		periods := int64(now.Sub(start) / sponsordomain.EarningPeriod)
		for i := int64(0); i <= periods; i++ {
			periodStart := start.Add(time.Duration(i) * sponsordomain.EarningPeriod)
			if err := s.creditSponsorship(ctx, githubID, upstream.MonthlyDollars,
				creditsdomain.ReasonRecurringSponsorship,
				recurringDedupKey(githubID, periodStart)); err != nil {
				return err
			}
		}
		lastEarning := start.Add(time.Duration(periods) * sponsordomain.EarningPeriod)
		if err := s.upsertSponsor(ctx, githubID, upstream.Login, upstream.MonthlyDollars, lastEarning); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) redirectedID(githubID int64) int64 {
	if target, ok := s.redirects[githubID]; ok {
		return target
	}
	return githubID
}

func (s *Service) creditSponsorship(ctx context.Context, githubID, dollars int64, reason creditsdomain.AdditionReason, dedupKey string) error {
	if dollars <= 0 {
		return nil
	}
	userID, err := s.lookupUser(ctx, githubID)
	if err != nil {
		return err
	}
	_, err = s.creditsSvc.Add(ctx, creditsdomain.AddRequest{
		GithubID: strconv.FormatInt(githubID, 10),
		UserID:   userID,
		Amount:   dollars * creditsdomain.CreditsPerDollar,
		Reason:   reason,
		Meta:     map[string]any{"amountInDollars": dollars},
		DedupKey: dedupKey,
	})
	return err
}

// lookupUser resolves the github id to a local account; zero means the
// sponsor has not signed up yet and the addition stays pre-consumption.
func (s *Service) lookupUser(ctx context.Context, githubID int64) (snowflake.ID, error) {
	var userID snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE github_id = ?`,
		strconv.FormatInt(githubID, 10),
	).Scan(&userID).Error
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *Service) upsertSponsor(ctx context.Context, githubID int64, login string, monthly int64, lastEarning time.Time) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO sponsors (id, github_id, github_login, monthly_amount, last_earning_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (github_id) DO UPDATE SET
			github_login = excluded.github_login,
			monthly_amount = excluded.monthly_amount,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		githubID,
		login,
		monthly,
		lastEarning.UTC(),
		now,
		now,
	).Error
}

func (s *Service) updateSponsorAmount(ctx context.Context, githubID, monthly int64) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE sponsors SET monthly_amount = ?, updated_at = ? WHERE github_id = ?`,
		monthly,
		s.clock.Now(),
		githubID,
	).Error
}

func (s *Service) advanceEarningDate(ctx context.Context, githubID int64, to time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE sponsors SET last_earning_date = ?, updated_at = ? WHERE github_id = ?`,
		to.UTC(),
		s.clock.Now(),
		githubID,
	).Error
}

func (s *Service) deleteSponsor(ctx context.Context, githubID int64) error {
	s.log.Info("removing inactive sponsor", zap.Int64("github_id", githubID))
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM sponsors WHERE github_id = ?`,
		githubID,
	).Error
}

func recurringDedupKey(githubID int64, periodStart time.Time) string {
	return fmt.Sprintf("recurring:%d:%s", githubID, periodStart.UTC().Format("2006-01-02"))
}
