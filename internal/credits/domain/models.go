package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AdditionReason classifies how credits were earned.
type AdditionReason string

const (
	ReasonOneTimeSponsorship   AdditionReason = "one_time_sponsorship"
	ReasonRecurringSponsorship AdditionReason = "recurring_sponsorship"
	ReasonTierChanged          AdditionReason = "tier_changed"
	ReasonAdoptedProbe         AdditionReason = "adopted_probe"
	ReasonOther                AdditionReason = "other"
)

const (
	// CreditsPerDollar converts sponsorship dollars into credits.
	CreditsPerDollar = 2000
	// AdoptedProbeCreditsPerDay is earned by each online adopted probe.
	AdoptedProbeCreditsPerDay = 150
)

// Credits is the running balance per user.
type Credits struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_credits_user_id" json:"user_id"`
	Amount    int64        `gorm:"not null;default:0" json:"amount"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Credits) TableName() string { return "credits" }

// CreditsAddition is an immutable earning event. Rows recorded before the
// user signs up carry only the GitHub id; they are consumed into the balance
// when the account is created.
type CreditsAddition struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	GithubID     *string           `gorm:"type:text;index" json:"github_id,omitempty"`
	UserID       *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Amount       int64             `gorm:"not null" json:"amount"`
	Reason       AdditionReason    `gorm:"type:text;not null" json:"reason"`
	Meta         datatypes.JSONMap `gorm:"not null" json:"meta"`
	AdoptedProbe *snowflake.ID     `json:"adopted_probe,omitempty"`
	Consumed     bool              `gorm:"not null;default:false" json:"consumed"`
	DedupKey     *string           `gorm:"type:text;uniqueIndex:ux_credits_additions_dedup" json:"-"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CreditsAddition) TableName() string { return "credits_additions" }

// CreditsDeduction records a balance decrement.
type CreditsDeduction struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CreditsDeduction) TableName() string { return "credits_deductions" }

// TimelineEntry is one row of the merged additions/deductions feed.
type TimelineEntry struct {
	Type      string         `json:"type"`
	Amount    int64          `json:"amount"`
	Reason    AdditionReason `json:"reason,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
