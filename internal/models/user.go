package models

import (
	"time"

	"gorm.io/gorm"
)

// Role classes for the contact permission model.
const (
	RoleAdmin       = "admin" // owning organization staff, unrestricted
	RoleCoordinator = "coordinator"
	RoleClient      = "client"
)

// User represents an account in the directory: organization staff,
// an assigned coordinator, or an external client.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Role      string         `gorm:"not null;index;default:'client'" json:"role"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ValidRole reports whether the role string is one of the known role classes.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCoordinator, RoleClient:
		return true
	}
	return false
}

// Profile is the display projection of a user embedded in messages and
// conversation summaries.
type Profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Profile returns the display projection for the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Role: u.Role}
}
