package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleKind discriminates the closed set of goal rule variants.
type RuleKind string

const (
	RuleKindTask   RuleKind = "task"
	RuleKindPoints RuleKind = "points"
)

// TaskRuleMode selects whether all referenced tasks or at least one must be done.
type TaskRuleMode string

const (
	TaskRuleAll TaskRuleMode = "all"
	TaskRuleOne TaskRuleMode = "one"
)

// GoalRule is the condition under which a goal counts as satisfied. It is a
// tagged union: task rules reference a task list and a mode, points rules a
// threshold. Dispatch happens centrally in the rule evaluator.
type GoalRule struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string       `gorm:"index;not null" json:"organisation_id"`
	Name           string       `gorm:"not null" json:"name"`
	Kind           RuleKind     `gorm:"type:varchar(16);not null;index" json:"kind"`
	TaskMode       TaskRuleMode `gorm:"type:varchar(8)" json:"task_mode,omitempty"`
	PointThreshold int64        `json:"point_threshold,omitempty"`
	Tasks          []Task       `gorm:"many2many:rule_tasks" json:"tasks,omitempty"`
	Timestamps
}

func (r *GoalRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// TaskIDs returns the ids of the rule's referenced tasks.
func (r *GoalRule) TaskIDs() []string {
	ids := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// ReferencesTask reports whether the rule's task list contains the given task.
func (r *GoalRule) ReferencesTask(taskID string) bool {
	for _, t := range r.Tasks {
		if t.ID == taskID {
			return true
		}
	}
	return false
}

// Goal ties one rule to a reward list, an eligibility policy (roles, group
// flag) and a repeatability policy.
type Goal struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	OrganisationID string    `gorm:"index;not null" json:"organisation_id"`
	Name           string    `gorm:"not null" json:"name"`
	Slug           string    `gorm:"index" json:"slug"`
	RuleID         string    `gorm:"index;not null" json:"rule_id"`
	Rule           *GoalRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
	// No column default here: gorm would drop an explicit false on insert.
	// The API layer defaults omitted values to true instead.
	Repeatable bool     `gorm:"not null" json:"repeatable"`
	GroupGoal  bool     `gorm:"not null;default:false" json:"group_goal"`
	Rewards    []Reward `gorm:"many2many:goal_rewards" json:"rewards,omitempty"`
	Roles      []Role   `gorm:"many2many:goal_roles" json:"roles,omitempty"`
	Timestamps
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// FinishedGoal is the receipt proving a goal was satisfied once by a subject.
// Its existence for (goal, subject) is the idempotency key.
type FinishedGoal struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	GoalID      string      `gorm:"index;not null" json:"goal_id"`
	Goal        *Goal       `gorm:"foreignKey:GoalID" json:"goal,omitempty"`
	SubjectKind SubjectKind `gorm:"type:varchar(8);not null;index:idx_finished_goal_subject" json:"subject_kind"`
	SubjectID   string      `gorm:"not null;index:idx_finished_goal_subject" json:"subject_id"`
	FinishedAt  time.Time   `gorm:"not null" json:"finished_at"`
}

func (f *FinishedGoal) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// FinishedTask records a single task completion by a subject. The historical
// record is what TaskRule/ALL evaluation consults.
type FinishedTask struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	TaskID      string      `gorm:"index;not null" json:"task_id"`
	SubjectKind SubjectKind `gorm:"type:varchar(8);not null;index:idx_finished_task_subject" json:"subject_kind"`
	SubjectID   string      `gorm:"not null;index:idx_finished_task_subject" json:"subject_id"`
	FinishedAt  time.Time   `gorm:"not null" json:"finished_at"`
}

func (f *FinishedTask) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
