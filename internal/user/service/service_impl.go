package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"github.com/globalping/backoffice/internal/gh"
	"github.com/globalping/backoffice/internal/user/domain"
	"github.com/globalping/backoffice/pkg/db"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Github  gh.Client
	Credits creditsdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	github  gh.Client
	credits creditsdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("user.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		github:  p.Github,
		credits: p.Credits,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.User, error) {
	githubID := strings.TrimSpace(req.GithubID)
	if githubID == "" {
		return nil, domain.ErrInvalidGithubID
	}
	username := strings.TrimSpace(req.GithubUsername)

	orgs := s.fetchOrganizations(ctx, req.UserToken, username)
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:                  s.genID.Generate(),
		GithubID:            githubID,
		GithubUsername:      username,
		GithubOrganizations: orgsJSON,
		AdoptionToken:       uuid.NewString(),
		DefaultPrefix:       username,
		UserType:            domain.TypeMember,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUserExists
			}
			return err
		}
		consumed, err := s.credits.ConsumePreSignup(ctx, tx, githubID, user.ID)
		if err != nil {
			return err
		}
		if consumed > 0 {
			s.log.Info("consumed pre-signup credits",
				zap.String("github_id", githubID),
				zap.Int64("amount", consumed),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// fetchOrganizations is best effort. Sign-up must not fail because GitHub is
// slow or the token lacks the org scope.
func (s *Service) fetchOrganizations(ctx context.Context, userToken, login string) []string {
	if login == "" {
		return []string{}
	}
	orgs, err := s.github.Organizations(ctx, userToken, login)
	if err != nil {
		s.log.Warn("failed to list github organizations", zap.String("login", login), zap.Error(err))
		return []string{}
	}
	if orgs == nil {
		orgs = []string{}
	}
	return orgs
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) GetByGithubID(ctx context.Context, githubID string) (*domain.User, error) {
	return s.repo.GetByGithubID(ctx, s.db, githubID)
}

func (s *Service) GetByAdoptionToken(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	return s.repo.GetByAdoptionToken(ctx, s.db, token)
}

func (s *Service) SyncGithub(ctx context.Context, id snowflake.ID, userToken string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	info, err := s.github.User(ctx, userToken, user.GithubUsername)
	if err != nil {
		s.log.Warn("github profile lookup failed", zap.String("login", user.GithubUsername), zap.Error(err))
		return nil, domain.ErrGithubSyncFailed
	}

	orgs := s.fetchOrganizations(ctx, userToken, info.Login)
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return nil, err
	}

	user.GithubUsername = info.Login
	user.GithubOrganizations = orgsJSON
	if user.DefaultPrefix != "" && !prefixAllowed(user.DefaultPrefix, info.Login, orgs) {
		user.DefaultPrefix = info.Login
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.repo.Save(ctx, s.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) UpdateSettings(ctx context.Context, id snowflake.ID, defaultPrefix *string, userType *domain.UserType) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if defaultPrefix != nil {
		var orgs []string
		if len(user.GithubOrganizations) > 0 {
			if err := json.Unmarshal(user.GithubOrganizations, &orgs); err != nil {
				return nil, err
			}
		}
		if !prefixAllowed(*defaultPrefix, user.GithubUsername, orgs) {
			return nil, domain.ErrInvalidPrefix
		}
		user.DefaultPrefix = *defaultPrefix
	}
	if userType != nil {
		if !userType.Valid() {
			return nil, domain.ErrInvalidUserType
		}
		user.UserType = *userType
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, s.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) RegenerateToken(ctx context.Context, id snowflake.ID) (string, error) {
	user, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return "", err
	}

	user.AdoptionToken = uuid.NewString()
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, s.db, user); err != nil {
		return "", err
	}
	return user.AdoptionToken, nil
}

func prefixAllowed(prefix, username string, orgs []string) bool {
	if prefix == username {
		return true
	}
	for _, org := range orgs {
		if prefix == org {
			return true
		}
	}
	return false
}
