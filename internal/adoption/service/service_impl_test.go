package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/adoption/domain"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/controlapi"
	creditsservice "github.com/globalping/backoffice/internal/credits/service"
	"github.com/globalping/backoffice/internal/gh"
	notifdomain "github.com/globalping/backoffice/internal/notification/domain"
	notifrepository "github.com/globalping/backoffice/internal/notification/repository"
	notifservice "github.com/globalping/backoffice/internal/notification/service"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	proberepository "github.com/globalping/backoffice/internal/probe/repository"
	"github.com/globalping/backoffice/internal/ratelimit"
	"github.com/globalping/backoffice/internal/testdb"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	userrepository "github.com/globalping/backoffice/internal/user/repository"
	userservice "github.com/globalping/backoffice/internal/user/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type controlStub struct {
	info     *controlapi.ProbeInfo
	lastCode string
	err      error
}

func (c *controlStub) SendAdoptionCode(ctx context.Context, ip, code string) (*controlapi.ProbeInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastCode = code
	return c.info, nil
}

type limiterStub struct {
	result *ratelimit.Result
	err    error
}

func (l *limiterStub) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.result != nil {
		return l.result, nil
	}
	return &ratelimit.Result{Allowed: true}, nil
}

type ghNoop struct{}

func (ghNoop) User(ctx context.Context, userToken, login string) (*gh.UserInfo, error) {
	return nil, errors.New("unavailable")
}

func (ghNoop) Organizations(ctx context.Context, userToken, login string) ([]string, error) {
	return nil, nil
}

func (ghNoop) ListSponsors(ctx context.Context) ([]gh.Sponsor, error) {
	return nil, nil
}

type adoptionFixture struct {
	svc     domain.Service
	users   userdomain.Service
	probes  probedomain.Repository
	notifs  notifdomain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
	node    *snowflake.Node
	control *controlStub
	limiter *limiterStub
}

func setupAdoptionService(t *testing.T) *adoptionFixture {
	t.Helper()

	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	creditsSvc := creditsservice.New(creditsservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
	})
	users := userservice.New(userservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Repo:    userrepository.Provide(),
		Github:  ghNoop{},
		Credits: creditsSvc,
	})
	notifs := notifservice.New(notifservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  notifrepository.Provide(),
	})

	control := &controlStub{info: &controlapi.ProbeInfo{
		UUID:      "9f6e2c51-0000-4000-8000-000000000001",
		IP:        "203.0.113.5",
		Version:   "0.39.0",
		Country:   "DE",
		City:      "Berlin",
		Latitude:  52.52,
		Longitude: 13.41,
		Status:    "ready",
	}}
	limiter := &limiterStub{}
	probes := proberepository.Provide()

	svc := New(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Probes:        probes,
		Users:         users,
		ControlAPI:    control,
		Notifications: notifs,
		Limiter:       ratelimit.AdoptionLimiter{Limiter: limiter},
	})

	return &adoptionFixture{
		svc:     svc,
		users:   users,
		probes:  probes,
		notifs:  notifs,
		db:      db,
		clock:   fake,
		node:    node,
		control: control,
		limiter: limiter,
	}
}

func (f *adoptionFixture) createUser(t *testing.T, githubID, login string) *userdomain.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), userdomain.CreateRequest{
		GithubID:       githubID,
		GithubUsername: login,
	})
	require.NoError(t, err)
	return user
}

func TestSendCodeRejectsInvalidIP(t *testing.T) {
	f := setupAdoptionService(t)

	err := f.svc.SendCode(context.Background(), 1, "not-an-ip")
	require.ErrorIs(t, err, domain.ErrInvalidIP)
}

func TestVerifyCodeAdoptsProbe(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	require.NoError(t, f.svc.SendCode(ctx, user.ID, "203.0.113.5"))
	require.Len(t, f.control.lastCode, 6)

	probe, err := f.svc.VerifyCode(ctx, user.ID, "203.0.113.5", f.control.lastCode)
	require.NoError(t, err)
	require.NotNil(t, probe.UserID)
	require.Equal(t, user.ID, *probe.UserID)
	require.Equal(t, "DE", probe.Country)
	require.Equal(t, "Berlin", probe.City)
	require.Equal(t, probedomain.StatusReady, probe.Status)

	// Codes are single use.
	_, err = f.svc.VerifyCode(ctx, user.ID, "203.0.113.5", f.control.lastCode)
	require.ErrorIs(t, err, domain.ErrNoPending)
}

func TestVerifyCodeRejectsWrongCode(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	require.NoError(t, f.svc.SendCode(ctx, user.ID, "203.0.113.5"))

	wrong := "000000"
	if f.control.lastCode == wrong {
		wrong = "000001"
	}
	_, err := f.svc.VerifyCode(ctx, user.ID, "203.0.113.5", wrong)
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	// A wrong guess does not invalidate the pending code.
	_, err = f.svc.VerifyCode(ctx, user.ID, "203.0.113.5", f.control.lastCode)
	require.NoError(t, err)
}

func TestVerifyCodeExpires(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	require.NoError(t, f.svc.SendCode(ctx, user.ID, "203.0.113.5"))

	f.clock.Advance(31 * time.Minute)
	_, err := f.svc.VerifyCode(ctx, user.ID, "203.0.113.5", f.control.lastCode)
	require.ErrorIs(t, err, domain.ErrNoPending)
}

func TestAdoptionReassignsAndNotifiesPreviousOwner(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	previous := f.createUser(t, "100", "alice")
	next := f.createUser(t, "200", "bob")

	name := "alices-probe"
	existing := &probedomain.Probe{
		ID:           f.node.Generate(),
		IP:           "203.0.113.5",
		Name:         &name,
		Country:      "DE",
		City:         "Berlin",
		Status:       probedomain.StatusReady,
		UserID:       &previous.ID,
		Tags:         []byte(`[{"prefix":"alice","value":"home"}]`),
		LastSyncDate: f.clock.Now(),
	}
	require.NoError(t, f.probes.Insert(ctx, f.db, existing))

	require.NoError(t, f.svc.SendCode(ctx, next.ID, "203.0.113.5"))
	probe, err := f.svc.VerifyCode(ctx, next.ID, "203.0.113.5", f.control.lastCode)
	require.NoError(t, err)
	require.Equal(t, existing.ID, probe.ID)
	require.Equal(t, next.ID, *probe.UserID)
	require.Nil(t, probe.Name)
	require.JSONEq(t, `[]`, string(probe.Tags))

	notifications, err := f.notifs.ListByUser(ctx, previous.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Contains(t, notifications[0].Message, "adopted by another account")
}

func TestAdoptByToken(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	// Token adoption never creates probe rows.
	_, err := f.svc.AdoptByToken(ctx, user.AdoptionToken, "203.0.113.9")
	require.ErrorIs(t, err, probedomain.ErrProbeNotFound)

	existing := &probedomain.Probe{
		ID:           f.node.Generate(),
		IP:           "203.0.113.9",
		Country:      "NL",
		City:         "Amsterdam",
		Status:       probedomain.StatusReady,
		Tags:         []byte("[]"),
		LastSyncDate: f.clock.Now(),
	}
	require.NoError(t, f.probes.Insert(ctx, f.db, existing))

	probe, err := f.svc.AdoptByToken(ctx, user.AdoptionToken, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, user.ID, *probe.UserID)

	_, err = f.svc.AdoptByToken(ctx, "unknown-token", "203.0.113.9")
	require.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestThrottleReturnsRetryAfter(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	f.limiter.result = &ratelimit.Result{Allowed: false, RetryAfter: 90 * time.Second}

	err := f.svc.SendCode(ctx, user.ID, "203.0.113.5")
	var tooMany *domain.TooManyRequestsError
	require.ErrorAs(t, err, &tooMany)
	require.Equal(t, 90*time.Second, tooMany.RetryAfter)
}

func TestThrottleFailsOpenOnLimiterError(t *testing.T) {
	f := setupAdoptionService(t)
	ctx := context.Background()
	user := f.createUser(t, "100", "alice")

	f.limiter.err = errors.New("redis unreachable")

	require.NoError(t, f.svc.SendCode(ctx, user.ID, "203.0.113.5"))
}
