package services

import (
	"log"
	"time"

	"gamification-engine/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Level thresholds: points required to hold each level.
var levelThresholds = []struct {
	Points int64
	Label  string
}{
	{0, "novice"},
	{100, "apprentice"},
	{500, "veteran"},
	{2000, "expert"},
	{10000, "master"},
}

var levelCaser = cases.Title(language.English)

// levelForPoints returns the level index and display label for a point total.
func levelForPoints(points int64) (int, string) {
	index, label := 1, levelThresholds[0].Label
	for i, t := range levelThresholds {
		if points >= t.Points {
			index = i + 1
			label = t.Label
		}
	}
	return index, levelCaser.String(label)
}

// RewardService settles reward lists against a subject's balances and
// permanent-reward ledger.
type RewardService struct {
	DB    *gorm.DB
	locks *KeyedLocks
}

func NewRewardService(db *gorm.DB, locks *KeyedLocks) *RewardService {
	return &RewardService{DB: db, locks: locks}
}

// Apply grants a reward list to a subject outside of goal completion
// (administrative grants). Point rewards re-trigger evaluation of the
// organisation's points-rule goals, so a grant can finish goals too.
func (s *RewardService) Apply(org *models.Organisation, subject models.Subject, rewards []models.Reward, now time.Time) ([]models.Goal, error) {
	if subject.OrganisationKey() != org.ID {
		return nil, errNotFound("no such %s in organisation: %s", subject.SubjectKind(), subject.SubjectID())
	}

	release := s.locks.Acquire(subjectLockKey(subject))
	defer release()

	var finished []models.Goal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		pts, err := applyRewardsTx(tx, rewards, subject, now)
		if err != nil {
			return err
		}
		if pts > 0 {
			goalSvc := NewGoalService(s.DB, s.locks)
			finished, err = goalSvc.pointsPassTx(tx, org, subject, now)
			if err != nil {
				return err
			}
		}
		return tx.Save(subject).Error
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

// applyRewardsTx dispatches each reward by kind: coin and point amounts
// increment the subject's balances, badges and achievements append to the
// permanent-reward ledger. It touches only the subject and returns the points
// earned so callers can re-check points-rule goals. The caller saves the
// subject when its transaction commits.
func applyRewardsTx(tx *gorm.DB, rewards []models.Reward, subject models.Subject, now time.Time) (int64, error) {
	var points int64
	for i := range rewards {
		r := &rewards[i]
		switch r.Kind {
		case models.RewardKindCoins:
			subject.AddCoins(r.Amount)
		case models.RewardKindPoints:
			subject.AddPoints(r.Amount)
			points += r.Amount
		case models.RewardKindBadge, models.RewardKindAchievement:
			entry := &models.EarnedReward{
				RewardID:    r.ID,
				SubjectKind: subject.SubjectKind(),
				SubjectID:   subject.SubjectID(),
				EarnedAt:    now,
			}
			if err := tx.Create(entry).Error; err != nil {
				return 0, err
			}
			log.Printf("🎖️ %s awarded: %s → %s %s", r.Kind, r.Name, subject.SubjectKind(), subject.SubjectID())
		}
	}

	index, label := levelForPoints(subject.GetPoints())
	subject.SetLevel(index, label)
	return points, nil
}

// EarnedRewards returns the subject's permanent-reward ledger, optionally
// filtered by kind ("badge" or "achievement").
func (s *RewardService) EarnedRewards(subject models.Subject, kind models.RewardKind) ([]models.EarnedReward, error) {
	var earned []models.EarnedReward
	q := s.DB.Where("subject_kind = ? AND subject_id = ?", subject.SubjectKind(), subject.SubjectID()).
		Preload("Reward").
		Order("earned_at DESC")
	if err := q.Find(&earned).Error; err != nil {
		return nil, err
	}
	if kind == "" {
		return earned, nil
	}
	filtered := earned[:0]
	for _, e := range earned {
		if e.Reward != nil && e.Reward.Kind == kind {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}
