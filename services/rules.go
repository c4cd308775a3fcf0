package services

import (
	"gamification-engine/models"

	"gorm.io/gorm"
)

// evaluateRule decides whether a rule is satisfied for the subject as of the
// given task-completion event.
//
// Task rules with mode "all" consult the subject's historical completed-task
// record; mode "one" is satisfied by the triggering completion alone. Points
// rules compare the subject's current total against the threshold, so they
// must run after any point rewards of the triggering action were applied —
// the goal tracker re-evaluates them whenever points change.
func evaluateRule(tx *gorm.DB, rule *models.GoalRule, subject models.Subject, completedTaskID string) (bool, error) {
	switch rule.Kind {
	case models.RuleKindPoints:
		// A threshold of zero or below is satisfied immediately.
		return subject.GetPoints() >= rule.PointThreshold, nil

	case models.RuleKindTask:
		ids := rule.TaskIDs()
		if len(ids) == 0 {
			// A rule referencing no tasks is never satisfiable.
			return false, nil
		}
		if rule.TaskMode == models.TaskRuleOne {
			return rule.ReferencesTask(completedTaskID), nil
		}
		var done []string
		err := tx.Model(&models.FinishedTask{}).
			Distinct("task_id").
			Where("subject_kind = ? AND subject_id = ? AND task_id IN ?",
				subject.SubjectKind(), subject.SubjectID(), ids).
			Pluck("task_id", &done).Error
		if err != nil {
			return false, err
		}
		return len(done) == len(ids), nil
	}
	return false, nil
}
