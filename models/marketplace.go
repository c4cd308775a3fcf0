package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferStatus is the offer lifecycle: open → completed or open → cancelled,
// terminal either way.
type OfferStatus string

const (
	OfferStatusOpen      OfferStatus = "open"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// MarketPlace owns the offers of one organisation.
type MarketPlace struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string  `gorm:"uniqueIndex;not null" json:"organisation_id"`
	Offers         []Offer `gorm:"foreignKey:MarketPlaceID" json:"offers,omitempty"`
	Timestamps
}

func (m *MarketPlace) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Offer is a tradeable task listed against an escrowed coin prize. The initial
// prize is debited from the creator on creation; bids raise the prize. While
// the offer is open the sum of escrowed amounts always equals Prize.
type Offer struct {
	ID             string      `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string      `gorm:"index;not null" json:"organisation_id"`
	MarketPlaceID  string      `gorm:"index;not null" json:"market_place_id"`
	TaskID         string      `gorm:"index;not null" json:"task_id"`
	Task           *Task       `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	CreatorID      string      `gorm:"index;not null" json:"creator_id"`
	Name           string      `gorm:"not null" json:"name"`
	Slug           string      `gorm:"index" json:"slug"`
	InitialPrize   int64       `gorm:"not null" json:"initial_prize"`
	Prize          int64       `gorm:"not null" json:"prize"`
	Status         OfferStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	Deadline       *time.Time  `json:"deadline,omitempty"`
	Timestamps
}

func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Open reports whether the offer still accepts bids, completion or cancellation.
func (o *Offer) Open() bool { return o.Status == OfferStatusOpen }

// Bid is an additional escrowed pledge raising an offer's prize. The amount is
// debited from the bidder at creation and tracked per bidder so cancellation
// can refund each contributor individually.
type Bid struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	OfferID   string    `gorm:"index;not null" json:"offer_id"`
	PlayerID  string    `gorm:"index;not null" json:"player_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
