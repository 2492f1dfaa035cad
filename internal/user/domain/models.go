package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type UserType string

const (
	TypeMember  UserType = "member"
	TypeSponsor UserType = "sponsor"
	TypeSpecial UserType = "special"
)

func (t UserType) Valid() bool {
	switch t {
	case TypeMember, TypeSponsor, TypeSpecial:
		return true
	}
	return false
}

type User struct {
	ID                  snowflake.ID   `gorm:"primaryKey" json:"id"`
	GithubID            string         `gorm:"type:text;not null;uniqueIndex:ux_users_github_id" json:"github_id"`
	GithubUsername      string         `gorm:"type:text;not null;default:''" json:"github_username"`
	GithubOrganizations datatypes.JSON `gorm:"not null" json:"github_organizations"`
	AdoptionToken       string         `gorm:"type:text;not null;uniqueIndex:ux_users_adoption_token" json:"adoption_token"`
	DefaultPrefix       string         `gorm:"type:text;not null;default:''" json:"default_prefix"`
	UserType            UserType       `gorm:"type:text;not null;default:'member'" json:"user_type"`
	CreatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
