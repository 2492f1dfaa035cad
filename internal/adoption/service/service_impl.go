package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/adoption/domain"
	"github.com/globalping/backoffice/internal/cache"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/controlapi"
	notifdomain "github.com/globalping/backoffice/internal/notification/domain"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	"github.com/globalping/backoffice/internal/ratelimit"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Codes expire 30 minutes after they are sent.
const codeTTL = 30 * time.Minute

type pending struct {
	code string
	info *controlapi.ProbeInfo
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Probes        probedomain.Repository
	Users         userdomain.Service
	ControlAPI    controlapi.Client
	Notifications notifdomain.Service
	Limiter       ratelimit.AdoptionLimiter
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	probes        probedomain.Repository
	users         userdomain.Service
	controlAPI    controlapi.Client
	notifications notifdomain.Service
	limiter       ratelimit.AdoptionLimiter
	codes         cache.Cache[string, pending]
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("adoption.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		probes:        p.Probes,
		users:         p.Users,
		controlAPI:    p.ControlAPI,
		notifications: p.Notifications,
		limiter:       p.Limiter,
		codes:         cache.NewTTLCacheWithNow[string, pending](p.Clock.Now),
	}
}

func (s *Service) SendCode(ctx context.Context, userID snowflake.ID, ip string) error {
	ip, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	if err := s.throttle(ctx, userID); err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	info, err := s.controlAPI.SendAdoptionCode(ctx, ip, code)
	if err != nil {
		return err
	}

	s.codes.Set(codeKey(userID, ip), pending{code: code, info: info}, codeTTL)
	s.log.Info("adoption code sent", zap.Int64("user_id", int64(userID)), zap.String("ip", ip))
	return nil
}

func (s *Service) VerifyCode(ctx context.Context, userID snowflake.ID, ip, code string) (*probedomain.Probe, error) {
	ip, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}
	if err := s.throttle(ctx, userID); err != nil {
		return nil, err
	}

	key := codeKey(userID, ip)
	entry, ok := s.codes.Get(key)
	if !ok {
		return nil, domain.ErrNoPending
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(strings.TrimSpace(code))) != 1 {
		return nil, domain.ErrInvalidCode
	}
	s.codes.Delete(key)

	return s.adopt(ctx, userID, ip, entry.info)
}

func (s *Service) AdoptByToken(ctx context.Context, token, ip string) (*probedomain.Probe, error) {
	ip, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByAdoptionToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.throttle(ctx, user.ID); err != nil {
		return nil, err
	}

	return s.adopt(ctx, user.ID, ip, nil)
}

// adopt assigns the probe at ip to the user. The row is locked for the
// read-then-write so two concurrent adoptions of the same probe serialize.
// When info is set the probe row is created or refreshed from it; token
// adoption requires an already-registered probe.
func (s *Service) adopt(ctx context.Context, userID snowflake.ID, ip string, info *controlapi.ProbeInfo) (*probedomain.Probe, error) {
	var adopted *probedomain.Probe
	var previousOwner *snowflake.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := s.probeForUpdate(ctx, tx, ip)
		if err != nil && !errors.Is(err, probedomain.ErrProbeNotFound) {
			return err
		}

		now := s.clock.Now()
		if probe == nil {
			if info == nil {
				return probedomain.ErrProbeNotFound
			}
			probe = &probedomain.Probe{
				ID:        s.genID.Generate(),
				IP:        ip,
				Tags:      []byte("[]"),
				CreatedAt: now,
			}
			applyProbeInfo(probe, info)
			probe.UserID = &userID
			probe.LastSyncDate = now
			probe.UpdatedAt = now
			if err := s.probes.Insert(ctx, tx, probe); err != nil {
				return err
			}
			adopted = probe
			return nil
		}

		if probe.UserID != nil && *probe.UserID != userID {
			prev := *probe.UserID
			previousOwner = &prev
		}
		if info != nil {
			applyProbeInfo(probe, info)
			probe.LastSyncDate = now
		}
		probe.UserID = &userID
		probe.Name = nil
		probe.Tags = []byte("[]")
		probe.CustomLocation = nil
		probe.UpdatedAt = now
		if err := s.probes.Save(ctx, tx, probe); err != nil {
			return err
		}
		adopted = probe
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previousOwner != nil {
		_, err := s.notifications.Notify(ctx, notifdomain.NotifyRequest{
			UserID:  *previousOwner,
			Item:    fmt.Sprintf("probe:%d", adopted.ID),
			Subject: "Probe unassigned",
			Message: fmt.Sprintf("Your probe at %s has been adopted by another account.", ip),
		})
		if err != nil {
			s.log.Warn("failed to notify previous owner", zap.Int64("probe_id", int64(adopted.ID)), zap.Error(err))
		}
	}

	s.log.Info("probe adopted",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("probe_id", int64(adopted.ID)),
		zap.String("ip", ip),
	)
	return adopted, nil
}

// probeForUpdate loads the probe row by IP, locking it on databases that
// support row locks.
func (s *Service) probeForUpdate(ctx context.Context, tx *gorm.DB, ip string) (*probedomain.Probe, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var probe probedomain.Probe
	err := query.Model(&probedomain.Probe{}).Where("ip = ?", ip).First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, probedomain.ErrProbeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &probe, nil
}

func applyProbeInfo(probe *probedomain.Probe, info *controlapi.ProbeInfo) {
	probe.ProbeUUID = info.UUID
	probe.Version = info.Version
	probe.Country = info.Country
	probe.City = info.City
	probe.State = info.State
	lat, lng := info.Latitude, info.Longitude
	probe.Latitude = &lat
	probe.Longitude = &lng
	probe.Status = probedomain.Status(info.Status)
	if probe.Status == "" {
		probe.Status = probedomain.StatusOffline
	}
}

func (s *Service) throttle(ctx context.Context, userID snowflake.ID) error {
	result, err := s.limiter.Allow(ctx, fmt.Sprintf("adoption:%d", userID))
	if err != nil {
		// Fail open when the limiter backend is unreachable.
		s.log.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !result.Allowed {
		return &domain.TooManyRequestsError{RetryAfter: result.RetryAfter}
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeIP(raw string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.ErrInvalidIP
	}
	return addr.String(), nil
}

func codeKey(userID snowflake.ID, ip string) string {
	return fmt.Sprintf("%d|%s", userID, ip)
}
