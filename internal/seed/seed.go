package seed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	tokendomain "github.com/globalping/backoffice/internal/token/domain"
	tokenservice "github.com/globalping/backoffice/internal/token/service"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	"gorm.io/gorm"
)

const (
	devGithubID      = "1000000"
	devGithubLogin   = "globalping-dev"
	devAdoptionToken = "dev-adoption-token"
	devAppName       = "Globalping Dev Console"
	devAppSecret     = "dev-secret"
)

// EnsureDevFixtures seeds a user, an app and an unowned probe for local
// development. Safe to run repeatedly.
func EnsureDevFixtures(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureDevUserTx(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureDevAppTx(ctx, tx, node); err != nil {
			return err
		}
		return ensureDevProbeTx(ctx, tx, node)
	})
}

func ensureDevUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).
		Where("github_id = ?", devGithubID).
		First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	orgs, err := json.Marshal([]string{"globalping"})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user = userdomain.User{
		ID:                  node.Generate(),
		GithubID:            devGithubID,
		GithubUsername:      devGithubLogin,
		GithubOrganizations: orgs,
		AdoptionToken:       devAdoptionToken,
		DefaultPrefix:       devGithubLogin,
		UserType:            userdomain.TypeMember,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureDevAppTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var app tokendomain.App
	err := tx.WithContext(ctx).
		Where("name = ?", devAppName).
		First(&app).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := tokenservice.HashSecret(devAppSecret)
	if err != nil {
		return err
	}
	secrets, err := json.Marshal([]string{hashed})
	if err != nil {
		return err
	}
	grants, err := json.Marshal([]string{"authorization_code", "refresh_token"})
	if err != nil {
		return err
	}
	redirects, err := json.Marshal([]string{"http://localhost:3000/callback"})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	app = tokendomain.App{
		ID:           node.Generate(),
		Name:         devAppName,
		OwnerName:    "Globalping",
		OwnerURL:     "https://globalping.io",
		Secrets:      secrets,
		Grants:       grants,
		RedirectURLs: redirects,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&app).Error
}

func ensureDevProbeTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var probe probedomain.Probe
	err := tx.WithContext(ctx).
		Where("ip = ?", "203.0.113.10").
		First(&probe).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	lat, lng := 52.37, 4.89
	probe = probedomain.Probe{
		ID:           node.Generate(),
		ProbeUUID:    "6e1f7a3e-0000-4000-8000-000000000001",
		IP:           "203.0.113.10",
		Version:      "0.39.0",
		Country:      "NL",
		City:         "Amsterdam",
		Latitude:     &lat,
		Longitude:    &lng,
		Status:       probedomain.StatusReady,
		Tags:         []byte("[]"),
		LastSyncDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&probe).Error
}
