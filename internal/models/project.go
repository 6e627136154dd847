package models

import (
	"time"

	"gorm.io/gorm"
)

// Project carries the membership facts the messaging core consumes: which
// client a project belongs to and which coordinators are assigned to it.
// Everything else about projects lives outside this service.
type Project struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	ClientID     uint           `gorm:"not null;index" json:"client_id"`
	Client       *User          `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Coordinators []User         `gorm:"many2many:project_coordinators;" json:"coordinators,omitempty"`
	CreatedBy    uint           `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProjectCoordinator is the join table backing the many2many relationship.
type ProjectCoordinator struct {
	ProjectID uint      `gorm:"primaryKey" json:"project_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// HasCoordinator reports whether the user is assigned to the project as a
// coordinator.
func (p *Project) HasCoordinator(userID uint) bool {
	for _, c := range p.Coordinators {
		if c.ID == userID {
			return true
		}
	}
	return false
}

// IsMember reports whether the user participates in the project in any role:
// as its client or as one of its coordinators.
func (p *Project) IsMember(userID uint) bool {
	return p.ClientID == userID || p.HasCoordinator(userID)
}
