package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	sponsordomain "github.com/globalping/backoffice/internal/sponsor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	SponsorSvc sponsordomain.Service
	ProbeSvc   probedomain.Service
	ProbeRepo  probedomain.Repository
	CreditsSvc creditsdomain.Service
	Config     Config `optional:"true"`
}

// Scheduler drives the periodic back-office jobs. Jobs are idempotent, so a
// crashed or repeated run never double-applies credits or notifications.
type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	sponsorSvc sponsordomain.Service
	probeSvc   probedomain.Service
	probeRepo  probedomain.Repository
	creditsSvc creditsdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.SponsorSvc == nil || p.ProbeSvc == nil || p.ProbeRepo == nil || p.CreditsSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		sponsorSvc: p.SponsorSvc,
		probeSvc:   p.ProbeSvc,
		probeRepo:  p.ProbeRepo,
		creditsSvc: p.CreditsSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", s.genID.Generate().String()),
	)
	log.Debug("job started")
	jobRuns.WithLabelValues(name).Inc()

	err := fn(ctx)
	log.Debug("job finished", zap.Duration("took", time.Since(start)))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	jobErrors.WithLabelValues(name).Inc()
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"sponsors_reconcile", s.isJobEnabled("sponsors_reconcile"), func(ctx context.Context) error {
			return s.runJob(ctx, "sponsors_reconcile", s.cfg.JobTimeout, s.sponsorSvc.Reconcile)
		}},
		{"probe_expiry", s.isJobEnabled("probe_expiry"), func(ctx context.Context) error {
			return s.runJob(ctx, "probe_expiry", s.cfg.JobTimeout, s.probeSvc.SweepExpired)
		}},
		{"outdated_probes", s.isJobEnabled("outdated_probes"), func(ctx context.Context) error {
			return s.runJob(ctx, "outdated_probes", s.cfg.JobTimeout, s.probeSvc.NotifyOutdated)
		}},
		{"adopted_probe_credits", s.isJobEnabled("adopted_probe_credits"), func(ctx context.Context) error {
			return s.runJob(ctx, "adopted_probe_credits", s.cfg.JobTimeout, s.AdoptedProbeCreditsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
