package services

import (
	"testing"
	"time"

	"gamification-engine/models"

	"github.com/stretchr/testify/require"
)

func TestCompleteTaskFinishesSingleTaskGoal(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Login Coins", 25)
	points := seedReward(t, db, org, models.RewardKindPoints, "Login Points", 10)
	rule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "First Login",
		RuleID:         rule.ID,
		Repeatable:     false,
		Rewards:        []models.Reward{coins, points},
	})

	svc := NewGoalService(db, NewKeyedLocks())
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, goal.ID, finished[0].ID)

	fresh := reloadPlayer(t, db, player.ID)
	require.EqualValues(t, 25, fresh.Coins)
	require.EqualValues(t, 10, fresh.Points)
	require.EqualValues(t, 1, finishedGoalCount(t, db, goal.ID, player))
}

func TestNonRepeatableGoalFinishesOnce(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Login Coins", 25)
	rule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "First Login",
		RuleID:         rule.ID,
		Repeatable:     false,
		Rewards:        []models.Reward{coins},
	})

	svc := NewGoalService(db, NewKeyedLocks())
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)

	finished, err = svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Empty(t, finished)

	fresh := reloadPlayer(t, db, player.ID)
	require.EqualValues(t, 25, fresh.Coins)
	require.EqualValues(t, 1, finishedGoalCount(t, db, goal.ID, player))
}

func TestRepeatableGoalFinishesEachTime(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Login Coins", 5)
	rule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Daily Login Bonus",
		RuleID:         rule.ID,
		Repeatable:     true,
		Rewards:        []models.Reward{coins},
	})

	svc := NewGoalService(db, NewKeyedLocks())
	for i := 0; i < 3; i++ {
		finished, err := svc.CompleteTask(org, player, task, time.Now())
		require.NoError(t, err)
		require.Len(t, finished, 1)
	}

	fresh := reloadPlayer(t, db, player.ID)
	require.EqualValues(t, 15, fresh.Coins)
	require.EqualValues(t, 3, finishedGoalCount(t, db, goal.ID, player))
}

func TestAllModeRequiresEveryTask(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	taskA := seedTask(t, db, org, "Tutorial Part One", false)
	taskB := seedTask(t, db, org, "Tutorial Part Two", false)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Tutorial Coins", 50)
	rule := seedTaskRule(t, db, org, "tutorial done", models.TaskRuleAll, taskA, taskB)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Finish Tutorial",
		RuleID:         rule.ID,
		Repeatable:     false,
		Rewards:        []models.Reward{coins},
	})

	svc := NewGoalService(db, NewKeyedLocks())

	finished, err := svc.CompleteTask(org, player, taskA, time.Now())
	require.NoError(t, err)
	require.Empty(t, finished)
	require.EqualValues(t, 0, reloadPlayer(t, db, player.ID).Coins)

	finished, err = svc.CompleteTask(org, player, taskB, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, goal.ID, finished[0].ID)
	require.EqualValues(t, 50, reloadPlayer(t, db, player.ID).Coins)
}

func TestPointsGoalIsOneShotEvenWhenRepeatable(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	points := seedReward(t, db, org, models.RewardKindPoints, "Login Points", 10)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Milestone Coins", 100)

	taskRule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Daily Login Bonus",
		RuleID:         taskRule.ID,
		Repeatable:     true,
		Rewards:        []models.Reward{points},
	})

	pointsRule := seedPointsRule(t, db, org, "ten points", 10)
	milestone := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Ten Point Milestone",
		RuleID:         pointsRule.ID,
		Repeatable:     true,
		Rewards:        []models.Reward{coins},
	})

	svc := NewGoalService(db, NewKeyedLocks())

	// First completion earns 10 points and crosses the threshold.
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 2)
	require.EqualValues(t, 100, reloadPlayer(t, db, player.ID).Coins)

	// Second completion earns more points but never re-finishes the milestone.
	finished, err = svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)

	fresh := reloadPlayer(t, db, player.ID)
	require.EqualValues(t, 20, fresh.Points)
	require.EqualValues(t, 100, fresh.Coins)
	require.EqualValues(t, 1, finishedGoalCount(t, db, milestone.ID, player))
}

func TestPointRewardsCascadeAcrossThresholds(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)

	loginPoints := seedReward(t, db, org, models.RewardKindPoints, "Login Points", 10)
	bonusPoints := seedReward(t, db, org, models.RewardKindPoints, "Milestone Points", 20)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Big Coins", 500)

	taskRule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Login",
		RuleID:         taskRule.ID,
		Repeatable:     true,
		Rewards:        []models.Reward{loginPoints},
	})

	firstRule := seedPointsRule(t, db, org, "ten points", 10)
	seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "First Milestone",
		RuleID:         firstRule.ID,
		Rewards:        []models.Reward{bonusPoints},
	})

	secondRule := seedPointsRule(t, db, org, "twenty five points", 25)
	second := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Second Milestone",
		RuleID:         secondRule.ID,
		Rewards:        []models.Reward{coins},
	})

	// 10 login points finish the first milestone; its 20 bonus points push the
	// total to 30 and finish the second in the same settlement.
	svc := NewGoalService(db, NewKeyedLocks())
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 3)

	fresh := reloadPlayer(t, db, player.ID)
	require.EqualValues(t, 30, fresh.Points)
	require.EqualValues(t, 500, fresh.Coins)
	require.EqualValues(t, 1, finishedGoalCount(t, db, second.ID, player))
}

func TestRuleWithoutTasksNeverSatisfied(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	rule := seedTaskRule(t, db, org, "empty rule", models.TaskRuleAll)
	seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Unreachable",
		RuleID:         rule.ID,
	})

	svc := NewGoalService(db, NewKeyedLocks())
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Empty(t, finished)
}

func TestZeroThresholdSatisfiedImmediately(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	task := seedTask(t, db, org, "Daily Login", false)
	rule := seedPointsRule(t, db, org, "free", 0)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Freebie",
		RuleID:         rule.ID,
	})

	svc := NewGoalService(db, NewKeyedLocks())
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, goal.ID, finished[0].ID)
}

func TestRoleRestrictedGoal(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	vip := seedRole(t, db, org, "vip")
	outsider := seedPlayer(t, db, org, "bob", 0)
	insider := seedPlayer(t, db, org, "ada", 0, vip)
	task := seedTask(t, db, org, "Daily Login", false)
	rule := seedTaskRule(t, db, org, "logged in", models.TaskRuleOne, task)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "VIP Login",
		RuleID:         rule.ID,
		Roles:          []models.Role{vip},
	})

	svc := NewGoalService(db, NewKeyedLocks())

	finished, err := svc.CompleteTask(org, outsider, task, time.Now())
	require.NoError(t, err)
	require.Empty(t, finished)

	finished, err = svc.CompleteTask(org, insider, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)

	require.Error(t, svc.CheckEligibility(goal, outsider))
	require.Equal(t, KindIneligible, KindOf(svc.CheckEligibility(goal, outsider)))
	require.NoError(t, svc.CheckEligibility(goal, insider))

	eligible, err := svc.EligibleGoals(org, outsider)
	require.NoError(t, err)
	require.Empty(t, eligible)
}

func TestGroupGoalRequiresGroupSubject(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	group := seedGroup(t, db, org, "guild", *player)
	task := seedTask(t, db, org, "Raid Boss", false)
	coins := seedReward(t, db, org, models.RewardKindCoins, "Raid Coins", 100)
	rule := seedTaskRule(t, db, org, "boss down", models.TaskRuleOne, task)
	goal := seedGoal(t, db, &models.Goal{
		OrganisationID: org.ID,
		Name:           "Guild Raid",
		RuleID:         rule.ID,
		GroupGoal:      true,
		Repeatable:     false,
		Rewards:        []models.Reward{coins},
	})

	svc := NewGoalService(db, NewKeyedLocks())

	// A player completing the task never satisfies a group goal, and the
	// player's completion record does not count as group progress.
	finished, err := svc.CompleteTask(org, player, task, time.Now())
	require.NoError(t, err)
	require.Empty(t, finished)
	require.EqualValues(t, 0, finishedGoalCount(t, db, goal.ID, group))

	finished, err = svc.CompleteTask(org, group, task, time.Now())
	require.NoError(t, err)
	require.Len(t, finished, 1)

	// The prize lands on the group's own balance, not on its members.
	require.EqualValues(t, 100, reloadGroup(t, db, group.ID).Coins)
	require.EqualValues(t, 0, reloadPlayer(t, db, player.ID).Coins)
}

func TestCompleteTaskRejectsForeignOrganisation(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	other := seedOrg(t, db, "rival")
	player := seedPlayer(t, db, org, "ada", 0)
	foreignTask := seedTask(t, db, other, "Their Task", false)

	svc := NewGoalService(db, NewKeyedLocks())
	_, err := svc.CompleteTask(org, player, foreignTask, time.Now())
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))

	foreignPlayer := seedPlayer(t, db, other, "eve", 0)
	task := seedTask(t, db, org, "Our Task", false)
	_, err = svc.CompleteTask(org, foreignPlayer, task, time.Now())
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestFinishedGoalsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db, "acme")
	player := seedPlayer(t, db, org, "ada", 0)
	taskA := seedTask(t, db, org, "Task A", false)
	taskB := seedTask(t, db, org, "Task B", false)

	ruleA := seedTaskRule(t, db, org, "a done", models.TaskRuleOne, taskA)
	goalA := seedGoal(t, db, &models.Goal{OrganisationID: org.ID, Name: "Goal A", RuleID: ruleA.ID})
	ruleB := seedTaskRule(t, db, org, "b done", models.TaskRuleOne, taskB)
	goalB := seedGoal(t, db, &models.Goal{OrganisationID: org.ID, Name: "Goal B", RuleID: ruleB.ID})

	svc := NewGoalService(db, NewKeyedLocks())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	_, err := svc.CompleteTask(org, player, taskA, base)
	require.NoError(t, err)
	_, err = svc.CompleteTask(org, player, taskB, base.Add(time.Hour))
	require.NoError(t, err)

	finished, err := svc.FinishedGoals(player)
	require.NoError(t, err)
	require.Len(t, finished, 2)
	require.Equal(t, goalB.ID, finished[0].GoalID)
	require.Equal(t, goalA.ID, finished[1].GoalID)
	require.NotNil(t, finished[0].Goal)
}
