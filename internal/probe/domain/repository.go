package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, probe *Probe) error
	GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Probe, error)
	GetByIP(ctx context.Context, db *gorm.DB, ip string) (*Probe, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Probe, error)
	Save(ctx context.Context, db *gorm.DB, probe *Probe) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// ListAdoptedOffline returns adopted probes whose last sync is older
	// than the cutoff.
	ListAdoptedOffline(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]Probe, error)
	// ListAdoptedOutdated returns adopted, online probes flagged as running
	// an outdated agent.
	ListAdoptedOutdated(ctx context.Context, db *gorm.DB) ([]Probe, error)
	// ListAdoptedOnline returns adopted probes currently in ready state.
	ListAdoptedOnline(ctx context.Context, db *gorm.DB) ([]Probe, error)
}
