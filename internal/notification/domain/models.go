package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Notification is a user-facing message shown in the dashboard.
type Notification struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Item      string       `gorm:"type:text;not null" json:"item"`
	Subject   string       `gorm:"type:text;not null" json:"subject"`
	Message   string       `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }
