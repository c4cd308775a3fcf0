package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Player holds the individual reward state: a coin balance that must never go
// negative, a point total, a derived level and the roles used for goal
// eligibility and offer visibility.
type Player struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string `gorm:"index;not null" json:"organisation_id"`
	Nickname       string `gorm:"not null" json:"nickname"`
	Coins          int64  `gorm:"not null;default:0" json:"coins"`
	Points         int64  `gorm:"not null;default:0" json:"points"`
	LevelIndex     int    `gorm:"not null;default:1" json:"level_index"`
	LevelLabel     string `json:"level_label"`
	Roles          []Role `gorm:"many2many:player_roles" json:"roles,omitempty"`
	Timestamps
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Player) SubjectKind() SubjectKind { return SubjectPlayer }
func (p *Player) SubjectID() string        { return p.ID }
func (p *Player) OrganisationKey() string  { return p.OrganisationID }
func (p *Player) GetCoins() int64          { return p.Coins }
func (p *Player) GetPoints() int64         { return p.Points }
func (p *Player) AddCoins(amount int64)    { p.Coins += amount }
func (p *Player) AddPoints(amount int64)   { p.Points += amount }

func (p *Player) SetLevel(index int, label string) {
	p.LevelIndex = index
	p.LevelLabel = label
}

func (p *Player) RoleIDs() []string {
	ids := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// EnoughCoins reports whether a debit of amount keeps the balance at zero or above.
func (p *Player) EnoughCoins(amount int64) bool {
	return p.Coins >= amount
}
