package services

import (
	"log"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
)

// GoalService tracks goal completion per player and per group. It records task
// completions, evaluates the organisation's goal rules, enforces the
// idempotency policy and invokes reward settlement for newly finished goals.
type GoalService struct {
	DB    *gorm.DB
	locks *KeyedLocks
}

func NewGoalService(db *gorm.DB, locks *KeyedLocks) *GoalService {
	return &GoalService{DB: db, locks: locks}
}

// CompleteTask runs the full task-completion path for a subject and returns
// the goals newly finished by this event. The whole operation is one
// transaction under the subject's lock, so two concurrent completions for the
// same subject cannot interleave.
//
// Completing a task as a player never propagates to the player's groups:
// group completion is a separate call with the group as the subject.
func (s *GoalService) CompleteTask(org *models.Organisation, subject models.Subject, task *models.Task, now time.Time) ([]models.Goal, error) {
	if task.OrganisationID != org.ID {
		return nil, errNotFound("no such task in organisation: %s", task.ID)
	}
	if subject.OrganisationKey() != org.ID {
		return nil, errNotFound("no such %s in organisation: %s", subject.SubjectKind(), subject.SubjectID())
	}

	release := s.locks.Acquire(subjectLockKey(subject))
	defer release()

	var finished []models.Goal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		finished, txErr = s.completeTaskTx(tx, org, subject, task, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

// completeTaskTx is the transactional body of CompleteTask. Callers must hold
// the subject's lock; the marketplace reuses it inside its own transactions.
func (s *GoalService) completeTaskTx(tx *gorm.DB, org *models.Organisation, subject models.Subject, task *models.Task, now time.Time) ([]models.Goal, error) {
	// Record the completion first so TaskRule/ALL evaluation sees this event.
	record := &models.FinishedTask{
		TaskID:      task.ID,
		SubjectKind: subject.SubjectKind(),
		SubjectID:   subject.SubjectID(),
		FinishedAt:  now,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}

	candidates, err := s.candidateGoals(tx, org.ID, task.ID)
	if err != nil {
		return nil, err
	}

	finished := make([]models.Goal, 0)
	pointsEarned := int64(0)
	for i := range candidates {
		done, pts, err := s.tryFinishGoal(tx, &candidates[i], subject, task.ID, now)
		if err != nil {
			return nil, err
		}
		if done {
			finished = append(finished, candidates[i])
			pointsEarned += pts
		}
	}

	// Point rewards can push the subject across further thresholds. Points
	// rules are one-shot, so each pass finishes strictly new goals and the
	// loop terminates.
	for pointsEarned > 0 {
		pointsEarned = 0
		for i := range candidates {
			if candidates[i].Rule == nil || candidates[i].Rule.Kind != models.RuleKindPoints {
				continue
			}
			done, pts, err := s.tryFinishGoal(tx, &candidates[i], subject, task.ID, now)
			if err != nil {
				return nil, err
			}
			if done {
				finished = append(finished, candidates[i])
				pointsEarned += pts
			}
		}
	}

	if err := tx.Save(subject).Error; err != nil {
		return nil, err
	}
	return finished, nil
}

// pointsPassTx re-evaluates the organisation's points-rule goals for the
// subject. Settlement calls it after administrative grants; the marketplace
// optionally calls it after a prize payout.
func (s *GoalService) pointsPassTx(tx *gorm.DB, org *models.Organisation, subject models.Subject, now time.Time) ([]models.Goal, error) {
	candidates, err := s.candidateGoals(tx, org.ID, "")
	if err != nil {
		return nil, err
	}

	finished := make([]models.Goal, 0)
	again := true
	for again {
		again = false
		for i := range candidates {
			done, pts, err := s.tryFinishGoal(tx, &candidates[i], subject, "", now)
			if err != nil {
				return nil, err
			}
			if done {
				finished = append(finished, candidates[i])
				if pts > 0 {
					again = true
				}
			}
		}
	}
	return finished, nil
}

// candidateGoals collects the organisation's goals whose rule references the
// task, plus all points-rule goals (any point-earning event can satisfy those).
func (s *GoalService) candidateGoals(tx *gorm.DB, orgID, taskID string) ([]models.Goal, error) {
	var goals []models.Goal
	err := tx.Where("organisation_id = ?", orgID).
		Preload("Rule.Tasks").
		Preload("Rewards").
		Preload("Roles").
		Find(&goals).Error
	if err != nil {
		return nil, err
	}

	candidates := goals[:0]
	for _, g := range goals {
		if g.Rule == nil {
			continue
		}
		if g.Rule.Kind == models.RuleKindPoints || g.Rule.ReferencesTask(taskID) {
			candidates = append(candidates, g)
		}
	}
	return candidates, nil
}

// tryFinishGoal runs eligibility, idempotency and rule evaluation for one
// candidate goal. On success it writes the FinishedGoal receipt and settles
// the goal's rewards, returning the points earned in the process.
func (s *GoalService) tryFinishGoal(tx *gorm.DB, goal *models.Goal, subject models.Subject, completedTaskID string, now time.Time) (bool, int64, error) {
	if goal.Rule == nil || !eligibleFor(goal, subject) {
		return false, 0, nil
	}

	// A points-rule goal is one-shot even when flagged repeatable.
	repeatForbidden := !goal.Repeatable || goal.Rule.Kind == models.RuleKindPoints
	if repeatForbidden {
		var n int64
		err := tx.Model(&models.FinishedGoal{}).
			Where("goal_id = ? AND subject_kind = ? AND subject_id = ?",
				goal.ID, subject.SubjectKind(), subject.SubjectID()).
			Count(&n).Error
		if err != nil {
			return false, 0, err
		}
		if n > 0 {
			return false, 0, nil
		}
	}

	ok, err := evaluateRule(tx, goal.Rule, subject, completedTaskID)
	if err != nil || !ok {
		return false, 0, err
	}

	receipt := &models.FinishedGoal{
		GoalID:      goal.ID,
		SubjectKind: subject.SubjectKind(),
		SubjectID:   subject.SubjectID(),
		FinishedAt:  now,
	}
	if err := tx.Create(receipt).Error; err != nil {
		return false, 0, err
	}

	pts, err := applyRewardsTx(tx, goal.Rewards, subject, now)
	if err != nil {
		return false, 0, err
	}

	log.Printf("🏁 Goal finished: %s by %s %s", goal.Name, subject.SubjectKind(), subject.SubjectID())
	return true, pts, nil
}

// eligibleFor checks the subject type against the group-goal flag and the
// role intersection. An empty role set means everyone is eligible.
func eligibleFor(goal *models.Goal, subject models.Subject) bool {
	if goal.GroupGoal != (subject.SubjectKind() == models.SubjectGroup) {
		return false
	}
	if len(goal.Roles) == 0 {
		return true
	}
	for _, r := range goal.Roles {
		for _, id := range subject.RoleIDs() {
			if r.ID == id {
				return true
			}
		}
	}
	return false
}

// CheckEligibility reports an Ineligible error when the subject's roles or
// type do not satisfy the goal's eligibility policy.
func (s *GoalService) CheckEligibility(goal *models.Goal, subject models.Subject) error {
	if !eligibleFor(goal, subject) {
		return errIneligible("%s %s is not eligible for goal %s", subject.SubjectKind(), subject.SubjectID(), goal.ID)
	}
	return nil
}

// EligibleGoals lists the organisation's goals the subject could complete.
func (s *GoalService) EligibleGoals(org *models.Organisation, subject models.Subject) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.DB.Where("organisation_id = ?", org.ID).
		Preload("Rule.Tasks").
		Preload("Rewards").
		Preload("Roles").
		Find(&goals).Error
	if err != nil {
		return nil, err
	}

	eligible := goals[:0]
	for _, g := range goals {
		if g.Rule != nil && eligibleFor(&g, subject) {
			eligible = append(eligible, g)
		}
	}
	return eligible, nil
}

// FinishedGoals returns the subject's receipts, newest first.
func (s *GoalService) FinishedGoals(subject models.Subject) ([]models.FinishedGoal, error) {
	var finished []models.FinishedGoal
	err := s.DB.Where("subject_kind = ? AND subject_id = ?", subject.SubjectKind(), subject.SubjectID()).
		Preload("Goal").
		Order("finished_at DESC").
		Find(&finished).Error
	return finished, err
}
