package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RewardKind discriminates the closed set of reward variants. Coins and points
// increment balances; badges and achievements are permanent rewards attached
// to the subject's ledger.
type RewardKind string

const (
	RewardKindCoins       RewardKind = "coins"
	RewardKindPoints      RewardKind = "points"
	RewardKindBadge       RewardKind = "badge"
	RewardKindAchievement RewardKind = "achievement"
)

// Reward is a catalog definition consumed, never mutated, by settlement.
type Reward struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string     `gorm:"index;not null" json:"organisation_id"`
	Name           string     `gorm:"not null" json:"name"`
	Kind           RewardKind `gorm:"type:varchar(16);not null" json:"kind"`
	Amount         int64      `json:"amount,omitempty"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	IconURL        string     `gorm:"type:text" json:"icon_url,omitempty"`
	Timestamps
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Permanent reports whether the reward attaches to the subject's ledger
// instead of incrementing a balance.
func (r *Reward) Permanent() bool {
	return r.Kind == RewardKindBadge || r.Kind == RewardKindAchievement
}

// EarnedReward is one ledger entry for a permanent reward held by a subject.
// Identity is the reward's id: the same badge definition earned through two
// distinct completions produces two entries.
type EarnedReward struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	RewardID    string      `gorm:"index;not null" json:"reward_id"`
	Reward      *Reward     `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
	SubjectKind SubjectKind `gorm:"type:varchar(8);not null;index:idx_earned_reward_subject" json:"subject_kind"`
	SubjectID   string      `gorm:"not null;index:idx_earned_reward_subject" json:"subject_id"`
	EarnedAt    time.Time   `gorm:"not null" json:"earned_at"`
}

func (e *EarnedReward) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
