package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/geocode"
	notifdomain "github.com/globalping/backoffice/internal/notification/domain"
	notifrepository "github.com/globalping/backoffice/internal/notification/repository"
	notifservice "github.com/globalping/backoffice/internal/notification/service"
	"github.com/globalping/backoffice/internal/probe/domain"
	proberepository "github.com/globalping/backoffice/internal/probe/repository"
	"github.com/globalping/backoffice/internal/testdb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type geocoderStub struct {
	locations map[string]*geocode.Location
}

func (g *geocoderStub) Resolve(ctx context.Context, city, country string) (*geocode.Location, error) {
	if loc, ok := g.locations[city+"|"+country]; ok {
		return loc, nil
	}
	return nil, geocode.ErrNotFound
}

type probeFixture struct {
	svc    domain.Service
	repo   domain.Repository
	notifs notifdomain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
}

func setupProbeService(t *testing.T, geocoder geocode.Resolver) *probeFixture {
	t.Helper()

	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	notifs := notifservice.New(notifservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  notifrepository.Provide(),
	})

	repo := proberepository.Provide()
	svc := New(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Repo:          repo,
		Geocoder:      geocoder,
		Notifications: notifs,
	})

	return &probeFixture{svc: svc, repo: repo, notifs: notifs, db: db, clock: fake, node: node}
}

func (f *probeFixture) createUser(t *testing.T, username string, orgs string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Exec(
		`INSERT INTO users (id, github_id, github_username, github_organizations, adoption_token)
		 VALUES (?, ?, ?, ?, ?)`,
		id, id.String(), username, orgs, "token-"+id.String(),
	).Error)
	return id
}

func (f *probeFixture) createProbe(t *testing.T, ip string, userID *snowflake.ID, status domain.Status, lastSync time.Time) *domain.Probe {
	t.Helper()
	probe := &domain.Probe{
		ID:           f.node.Generate(),
		IP:           ip,
		Version:      "0.39.0",
		Country:      "FR",
		City:         "Paris",
		Status:       status,
		UserID:       userID,
		Tags:         []byte("[]"),
		LastSyncDate: lastSync,
		CreatedAt:    lastSync,
		UpdatedAt:    lastSync,
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, probe))
	return probe
}

func strPtr(s string) *string { return &s }

func TestUpdateRejectsNonOwner(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	other := f.createUser(t, "other", `[]`)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusReady, f.clock.Now())

	_, err := f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  other,
		Name:    strPtr("mine now"),
	})
	require.ErrorIs(t, err, domain.ErrNotProbeOwner)

	unowned := f.createProbe(t, "203.0.113.2", nil, domain.StatusReady, f.clock.Now())
	_, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: unowned.ID,
		UserID:  other,
		Name:    strPtr("mine now"),
	})
	require.ErrorIs(t, err, domain.ErrNotProbeOwner)
}

func TestUpdateValidatesTags(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "jimaek", `["jsdelivr"]`)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusReady, f.clock.Now())

	updated, err := f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		Tags: []domain.Tag{
			{Prefix: "jimaek", Value: "home-1"},
			{Prefix: "jsdelivr", Value: "eu-west"},
		},
	})
	require.NoError(t, err)
	require.JSONEq(t,
		`[{"prefix":"jimaek","value":"home-1"},{"prefix":"jsdelivr","value":"eu-west"}]`,
		string(updated.Tags))

	_, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		Tags:    []domain.Tag{{Prefix: "someone-else", Value: "x"}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidTag)

	_, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		Tags:    []domain.Tag{{Prefix: "jimaek", Value: "no spaces"}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidTag)

	_, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		Tags:    []domain.Tag{{Prefix: "jimaek", Value: ""}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidTag)
}

func TestUpdateLocationOverride(t *testing.T) {
	marseille := &geocode.Location{
		City:      "Marseille",
		Country:   "FR",
		Latitude:  43.3,
		Longitude: 5.37,
	}
	f := setupProbeService(t, &geocoderStub{locations: map[string]*geocode.Location{
		"marseille|FR": marseille,
	}})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusReady, f.clock.Now())

	updated, err := f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		City:    strPtr("marseille"),
	})
	require.NoError(t, err)
	require.Equal(t, "Marseille", updated.City)
	require.Equal(t, "FR", updated.Country)
	require.NotNil(t, updated.Latitude)
	require.InDelta(t, 43.3, *updated.Latitude, 0.001)
	require.JSONEq(t,
		`{"country":"FR","city":"Marseille","state":null,"latitude":43.3,"longitude":5.37}`,
		string(updated.CustomLocation))

	_, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		City:    strPtr("atlantis"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidLocation)

	// An empty city drops the override.
	updated, err = f.svc.Update(ctx, domain.UpdateRequest{
		ProbeID: probe.ID,
		UserID:  owner,
		City:    strPtr(""),
	})
	require.NoError(t, err)
	require.Empty(t, []byte(updated.CustomLocation))
}

func TestUnassignClearsOwnershipAndNotifies(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusReady, f.clock.Now())
	probe.Name = strPtr("my-probe")
	require.NoError(t, f.repo.Save(ctx, f.db, probe))

	require.NoError(t, f.svc.Unassign(ctx, probe.ID))

	fresh, err := f.repo.GetByID(ctx, f.db, probe.ID)
	require.NoError(t, err)
	require.Nil(t, fresh.UserID)
	require.Nil(t, fresh.Name)
	require.JSONEq(t, `[]`, string(fresh.Tags))

	notifications, err := f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, "Probe unassigned", notifications[0].Subject)

	// Unassigning an already unowned probe is a no-op.
	require.NoError(t, f.svc.Unassign(ctx, probe.ID))
	notifications, err = f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
}

func TestSweepExpiredNotifiesOnceThenDeletes(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	lastSync := f.clock.Now().Add(-3 * 24 * time.Hour)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusOffline, lastSync)

	require.NoError(t, f.svc.SweepExpired(ctx))

	notifications, err := f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, "Your probe went offline", notifications[0].Subject)

	// Reruns within the same offline episode do not notify again.
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.svc.SweepExpired(ctx))
	notifications, err = f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	// Past the deletion threshold the probe is removed.
	f.clock.Advance(27 * 24 * time.Hour)
	require.NoError(t, f.svc.SweepExpired(ctx))

	_, err = f.repo.GetByID(ctx, f.db, probe.ID)
	require.ErrorIs(t, err, domain.ErrProbeNotFound)

	notifications, err = f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	require.Equal(t, "Your probe has been deleted", notifications[0].Subject)
}

func TestSweepExpiredSkipsFreshProbes(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	f.createProbe(t, "203.0.113.1", &owner, domain.StatusOffline, f.clock.Now().Add(-time.Hour))
	f.createProbe(t, "203.0.113.2", nil, domain.StatusOffline, f.clock.Now().Add(-10*24*time.Hour))

	require.NoError(t, f.svc.SweepExpired(ctx))

	notifications, err := f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Empty(t, notifications)
}

func TestNotifyOutdatedDedupsPerInterval(t *testing.T) {
	f := setupProbeService(t, &geocoderStub{})
	ctx := context.Background()

	owner := f.createUser(t, "owner", `[]`)
	probe := f.createProbe(t, "203.0.113.1", &owner, domain.StatusReady, f.clock.Now())
	probe.IsOutdated = true
	require.NoError(t, f.repo.Save(ctx, f.db, probe))

	require.NoError(t, f.svc.NotifyOutdated(ctx))
	require.NoError(t, f.svc.NotifyOutdated(ctx))

	notifications, err := f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, "Your probe is running an outdated version", notifications[0].Subject)

	// After the reminder interval elapses the owner is notified again.
	f.clock.Advance(31 * 24 * time.Hour)
	require.NoError(t, f.svc.NotifyOutdated(ctx))

	notifications, err = f.notifs.ListByUser(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
}
