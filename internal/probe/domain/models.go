package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusReady   Status = "ready"
	StatusOffline Status = "offline"
)

// Tag is a user-scoped probe label. The prefix must be the owner's GitHub
// username or one of their organizations.
type Tag struct {
	Prefix string `json:"prefix"`
	Value  string `json:"value"`
}

// CustomLocation is a user-provided location override. It replaces the
// probe-reported fields and is re-applied after every sync.
type CustomLocation struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	State     *string `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Probe is a network vantage point. UserID is nil until adopted.
type Probe struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	ProbeUUID      string         `gorm:"type:text;not null;default:''" json:"probe_uuid"`
	IP             string         `gorm:"type:text;not null;uniqueIndex:ux_probes_ip" json:"ip"`
	Name           *string        `gorm:"type:text" json:"name"`
	Version        string         `gorm:"type:text;not null;default:''" json:"version"`
	Country        string         `gorm:"type:text;not null;default:''" json:"country"`
	City           string         `gorm:"type:text;not null;default:''" json:"city"`
	State          *string        `gorm:"type:text" json:"state"`
	Latitude       *float64       `json:"latitude"`
	Longitude      *float64       `json:"longitude"`
	CustomLocation datatypes.JSON `json:"custom_location"`
	Status         Status         `gorm:"type:text;not null;default:'offline'" json:"status"`
	IsOutdated     bool           `gorm:"not null;default:false" json:"is_outdated"`
	UserID         *snowflake.ID  `gorm:"index" json:"user_id"`
	Tags           datatypes.JSON `gorm:"not null" json:"tags"`
	LastSyncDate   time.Time      `gorm:"not null" json:"last_sync_date"`
	SearchIndex    string         `gorm:"type:text;not null;default:''" json:"-"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Probe) TableName() string { return "probes" }

const (
	// Offline adopted probes notify their owner after this long without a sync.
	OfflineNotifyAfter = 2 * 24 * time.Hour
	// And are permanently removed after this long.
	OfflineDeleteAfter = 30 * 24 * time.Hour
)
