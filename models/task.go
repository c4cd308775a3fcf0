package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is an atomic unit of work. Only tradeable tasks may be listed on the
// marketplace. The optional role list narrows which players see offers for it;
// an empty list means everyone.
type Task struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string `gorm:"index;not null" json:"organisation_id"`
	Name           string `gorm:"not null" json:"name"`
	Slug           string `gorm:"index" json:"slug"`
	Description    string `gorm:"type:text" json:"description,omitempty"`
	Tradeable      bool   `gorm:"not null;default:false" json:"tradeable"`
	Roles          []Role `gorm:"many2many:task_roles" json:"roles,omitempty"`
	Timestamps
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// VisibleTo reports whether a player holding the given role ids may see
// marketplace offers for this task. Tasks without roles are visible to all.
func (t *Task) VisibleTo(roleIDs []string) bool {
	if len(t.Roles) == 0 {
		return true
	}
	for _, r := range t.Roles {
		for _, id := range roleIDs {
			if r.ID == id {
				return true
			}
		}
	}
	return false
}
