package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organisation is the tenant boundary. Every other entity belongs to exactly
// one organisation and is looked up through its API key.
type Organisation struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	APIKey string `gorm:"uniqueIndex;not null" json:"api_key"`
	Timestamps
}

func (o *Organisation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.APIKey == "" {
		o.APIKey = uuid.NewString()
	}
	return nil
}

// Role restricts who may complete a goal or see a marketplace offer.
type Role struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string `gorm:"index;not null" json:"organisation_id"`
	Name           string `gorm:"not null" json:"name"`
	Timestamps
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
