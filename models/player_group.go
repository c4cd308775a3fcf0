package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlayerGroup carries the same reward-bearing shape as Player plus a mutable
// membership list. Its reward state is wholly separate from its members':
// rewards awarded to the group never propagate to the individual players.
type PlayerGroup struct {
	ID             string   `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string   `gorm:"index;not null" json:"organisation_id"`
	Name           string   `gorm:"not null" json:"name"`
	Coins          int64    `gorm:"not null;default:0" json:"coins"`
	Points         int64    `gorm:"not null;default:0" json:"points"`
	LevelIndex     int      `gorm:"not null;default:1" json:"level_index"`
	LevelLabel     string   `json:"level_label"`
	Players        []Player `gorm:"many2many:group_players" json:"players,omitempty"`
	Timestamps
}

func (g *PlayerGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

func (g *PlayerGroup) SubjectKind() SubjectKind { return SubjectGroup }
func (g *PlayerGroup) SubjectID() string        { return g.ID }
func (g *PlayerGroup) OrganisationKey() string  { return g.OrganisationID }
func (g *PlayerGroup) GetCoins() int64          { return g.Coins }
func (g *PlayerGroup) GetPoints() int64         { return g.Points }
func (g *PlayerGroup) AddCoins(amount int64)    { g.Coins += amount }
func (g *PlayerGroup) AddPoints(amount int64)   { g.Points += amount }

func (g *PlayerGroup) SetLevel(index int, label string) {
	g.LevelIndex = index
	g.LevelLabel = label
}

// RoleIDs is always empty: groups carry no roles, so a goal with a role
// restriction can never be completed as a group.
func (g *PlayerGroup) RoleIDs() []string { return nil }
