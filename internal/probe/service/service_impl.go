package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/geocode"
	notifdomain "github.com/globalping/backoffice/internal/notification/domain"
	"github.com/globalping/backoffice/internal/probe/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Geocoder      geocode.Resolver
	Notifications notifdomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	geocoder      geocode.Resolver
	notifications notifdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("probe.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		geocoder:      p.Geocoder,
		notifications: p.Notifications,
	}
}

var tagValuePattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,32}$`)

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Probe, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Probe, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Probe, error) {
	var updated *domain.Probe
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := s.repo.GetByID(ctx, tx, req.ProbeID)
		if err != nil {
			return err
		}
		if probe.UserID == nil || *probe.UserID != req.UserID {
			return domain.ErrNotProbeOwner
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				probe.Name = nil
			} else {
				probe.Name = &name
			}
		}

		if req.Tags != nil {
			prefixes, err := s.ownerPrefixes(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			if err := validateTags(req.Tags, prefixes); err != nil {
				return err
			}
			raw, err := json.Marshal(req.Tags)
			if err != nil {
				return err
			}
			probe.Tags = raw
		}

		if req.City != nil {
			if err := s.applyLocationOverride(ctx, probe, *req.City, req.Country); err != nil {
				return err
			}
		}

		probe.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, tx, probe); err != nil {
			return err
		}
		updated = probe
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyLocationOverride resolves the requested city against the gazetteer and
// replaces the probe-reported location. An empty city drops the override; the
// reported fields come back with the probe's next sync.
func (s *Service) applyLocationOverride(ctx context.Context, probe *domain.Probe, city string, country *string) error {
	if strings.TrimSpace(city) == "" {
		probe.CustomLocation = nil
		return nil
	}

	cc := probe.Country
	if country != nil && strings.TrimSpace(*country) != "" {
		cc = strings.ToUpper(strings.TrimSpace(*country))
	}

	location, err := s.geocoder.Resolve(ctx, city, cc)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			return domain.ErrInvalidLocation
		}
		return err
	}

	override := domain.CustomLocation{
		Country:   location.Country,
		City:      location.City,
		State:     location.State,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
	}
	raw, err := json.Marshal(override)
	if err != nil {
		return err
	}

	probe.CustomLocation = raw
	probe.Country = override.Country
	probe.City = override.City
	probe.State = override.State
	probe.Latitude = &override.Latitude
	probe.Longitude = &override.Longitude
	return nil
}

func (s *Service) ownerPrefixes(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (map[string]struct{}, error) {
	var owner struct {
		GithubUsername      string
		GithubOrganizations []byte
	}
	err := tx.WithContext(ctx).
		Raw(`SELECT github_username, github_organizations FROM users WHERE id = ?`, userID).
		Scan(&owner).Error
	if err != nil {
		return nil, err
	}

	prefixes := map[string]struct{}{}
	if owner.GithubUsername != "" {
		prefixes[owner.GithubUsername] = struct{}{}
	}
	var orgs []string
	if len(owner.GithubOrganizations) > 0 {
		if err := json.Unmarshal(owner.GithubOrganizations, &orgs); err != nil {
			return nil, err
		}
	}
	for _, org := range orgs {
		prefixes[org] = struct{}{}
	}
	return prefixes, nil
}

func validateTags(tags []domain.Tag, prefixes map[string]struct{}) error {
	for _, tag := range tags {
		if _, ok := prefixes[tag.Prefix]; !ok {
			return fmt.Errorf("%w: prefix %q is not one of your identities", domain.ErrInvalidTag, tag.Prefix)
		}
		if !tagValuePattern.MatchString(tag.Value) {
			return fmt.Errorf("%w: value %q must be 1-32 alphanumeric or hyphen characters", domain.ErrInvalidTag, tag.Value)
		}
	}
	return nil
}

func (s *Service) Unassign(ctx context.Context, probeID snowflake.ID) error {
	var previousOwner *snowflake.ID
	var probeName string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := s.repo.GetByID(ctx, tx, probeID)
		if err != nil {
			return err
		}
		if probe.UserID == nil {
			return nil
		}

		previousOwner = probe.UserID
		probeName = displayName(probe)

		probe.UserID = nil
		probe.Name = nil
		probe.Tags = []byte("[]")
		probe.CustomLocation = nil
		probe.UpdatedAt = s.clock.Now()
		return s.repo.Save(ctx, tx, probe)
	})
	if err != nil {
		return err
	}
	if previousOwner == nil {
		return nil
	}

	_, err = s.notifications.Notify(ctx, notifdomain.NotifyRequest{
		UserID:  *previousOwner,
		Item:    fmt.Sprintf("probe:%d", probeID),
		Subject: "Probe unassigned",
		Message: fmt.Sprintf("Your probe %s is no longer assigned to your account.", probeName),
	})
	if err != nil {
		s.log.Warn("failed to notify previous owner", zap.Int64("probe_id", int64(probeID)), zap.Error(err))
	}
	return nil
}

func (s *Service) SweepExpired(ctx context.Context) error {
	now := s.clock.Now()
	probes, err := s.repo.ListAdoptedOffline(ctx, s.db, now.Add(-domain.OfflineNotifyAfter))
	if err != nil {
		return err
	}

	for _, probe := range probes {
		offline := now.Sub(probe.LastSyncDate)
		if offline >= domain.OfflineDeleteAfter {
			if err := s.expireProbe(ctx, probe); err != nil {
				s.log.Error("failed to expire probe", zap.Int64("probe_id", int64(probe.ID)), zap.Error(err))
			}
			continue
		}

		_, err := s.notifications.Notify(ctx, notifdomain.NotifyRequest{
			UserID:    *probe.UserID,
			Item:      fmt.Sprintf("probe:%d", probe.ID),
			Subject:   "Your probe went offline",
			Message:   fmt.Sprintf("Your probe %s has been offline for more than 2 days. It will be removed from your account after 30 days offline.", displayName(&probe)),
			NewerThan: probe.LastSyncDate,
		})
		if err != nil {
			s.log.Error("failed to notify probe owner", zap.Int64("probe_id", int64(probe.ID)), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) expireProbe(ctx context.Context, probe domain.Probe) error {
	owner := *probe.UserID
	name := displayName(&probe)

	if err := s.repo.Delete(ctx, s.db, probe.ID); err != nil {
		return err
	}

	_, err := s.notifications.Notify(ctx, notifdomain.NotifyRequest{
		UserID:  owner,
		Item:    fmt.Sprintf("probe:%d", probe.ID),
		Subject: "Your probe has been deleted",
		Message: fmt.Sprintf("Your probe %s was offline for more than 30 days and has been removed from your account.", name),
	})
	if err != nil {
		s.log.Warn("failed to notify probe owner about deletion", zap.Int64("probe_id", int64(probe.ID)), zap.Error(err))
	}
	return nil
}

// Owners are reminded about an outdated agent at most once per interval.
const outdatedNotifyInterval = 30 * 24 * time.Hour

func (s *Service) NotifyOutdated(ctx context.Context) error {
	probes, err := s.repo.ListAdoptedOutdated(ctx, s.db)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, probe := range probes {
		_, err := s.notifications.Notify(ctx, notifdomain.NotifyRequest{
			UserID:    *probe.UserID,
			Item:      fmt.Sprintf("probe:%d", probe.ID),
			Subject:   "Your probe is running an outdated version",
			Message:   fmt.Sprintf("Your probe %s is running an outdated agent (%s). Please update it to keep receiving measurements.", displayName(&probe), probe.Version),
			NewerThan: now.Add(-outdatedNotifyInterval),
		})
		if err != nil {
			s.log.Error("failed to notify about outdated probe", zap.Int64("probe_id", int64(probe.ID)), zap.Error(err))
		}
	}
	return nil
}

func displayName(probe *domain.Probe) string {
	if probe.Name != nil && *probe.Name != "" {
		return *probe.Name
	}
	return probe.IP
}
