package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Token is a bearer credential. Value holds only the salted hash; the
// plaintext is shown once at creation and never stored.
type Token struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID   `gorm:"not null;index" json:"user_id"`
	AppID     *snowflake.ID  `gorm:"index" json:"app_id"`
	Name      string         `gorm:"type:text;not null;default:''" json:"name"`
	Value     string         `gorm:"type:text;not null;uniqueIndex:ux_tokens_value" json:"-"`
	Origins   datatypes.JSON `gorm:"not null" json:"origins"`
	Expire    *time.Time     `gorm:"type:date" json:"expire"`
	TokenType TokenType      `gorm:"type:text;not null;default:'access'" json:"token_type"`
	LastUsed  *time.Time     `json:"last_used"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Token) TableName() string { return "tokens" }

// App is an OAuth-like client registration. Secrets hold bcrypt hashes.
type App struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	OwnerName    string         `gorm:"type:text;not null;default:''" json:"owner_name"`
	OwnerURL     string         `gorm:"type:text;not null;default:''" json:"owner_url"`
	Secrets      datatypes.JSON `gorm:"not null" json:"-"`
	Grants       datatypes.JSON `gorm:"not null" json:"grants"`
	RedirectURLs datatypes.JSON `gorm:"not null" json:"redirect_urls"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (App) TableName() string { return "apps" }

// Application is the per-user view returned by ListApplications: one approved
// app plus when the user last authorized it.
type Application struct {
	ID           snowflake.ID `json:"id"`
	Name         string       `json:"name"`
	OwnerName    string       `json:"owner_name"`
	OwnerURL     string       `json:"owner_url"`
	AuthorizedAt time.Time    `json:"authorized_at"`
}
