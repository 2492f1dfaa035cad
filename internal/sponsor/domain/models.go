package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sponsor mirrors an active recurring GitHub Sponsors relationship.
// LastEarningDate only ever advances by whole 30-day periods.
type Sponsor struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	GithubID        int64        `gorm:"not null;uniqueIndex:ux_sponsors_github_id" json:"github_id"`
	GithubLogin     string       `gorm:"type:text;not null" json:"github_login"`
	MonthlyAmount   int64        `gorm:"not null" json:"monthly_amount"`
	LastEarningDate time.Time    `gorm:"not null" json:"last_earning_date"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Sponsor) TableName() string { return "sponsors" }

// EarningPeriod is the credit accrual interval for recurring sponsorships.
const EarningPeriod = 30 * 24 * time.Hour
