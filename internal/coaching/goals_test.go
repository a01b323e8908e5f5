package coaching

import (
	"testing"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestUpdateGoalsFirstTurnScenario(t *testing.T) {
	got := UpdateGoals(domain.GoalTracking{},
		"I want to pivot into data science because I love analysis",
		"That sounds like a meaningful shift. What draws you to it most?")

	assert.True(t, got.GoalStated)
	assert.True(t, got.MotivationUnderstood)
	assert.False(t, got.ConstraintsAcknowledged)
	assert.False(t, ShouldEnd(got, 1), "a single turn can never end the session")
}

func TestUpdateGoalsUnderstandingNeedsPriorGoal(t *testing.T) {
	reply := "I understand how much this matters."

	noGoal := UpdateGoals(domain.GoalTracking{}, "hello there", reply)
	assert.False(t, noGoal.MotivationUnderstood)

	withGoal := UpdateGoals(domain.GoalTracking{GoalStated: true}, "hello there", reply)
	assert.True(t, withGoal.MotivationUnderstood)
}

func TestUpdateGoalsNextStepsComeFromReply(t *testing.T) {
	fromUser := UpdateGoals(domain.GoalTracking{}, "what is the next step", "Hmm.")
	assert.False(t, fromUser.NextStepsDefined)

	fromReply := UpdateGoals(domain.GoalTracking{}, "hello", "Your next step is to update your resume.")
	assert.True(t, fromReply.NextStepsDefined)
}

func TestUpdateGoalsCaseInsensitiveConstraints(t *testing.T) {
	got := UpdateGoals(domain.GoalTracking{}, "HOWEVER my time is LIMITED", "Okay.")
	assert.True(t, got.ConstraintsAcknowledged)
}

func TestUpdateGoalsIsMonotonic(t *testing.T) {
	state := domain.GoalTracking{}
	turns := []struct{ user, reply string }{
		{"My goal is to teach", "Tell me more."},
		{"because I enjoy it", "Okay."},
		{"", ""},
		{"nothing relevant", "Hmm."},
	}

	var prev domain.GoalTracking
	for i, turn := range turns {
		state = UpdateGoals(state, turn.user, turn.reply)
		if prev.GoalStated && !state.GoalStated ||
			prev.MotivationUnderstood && !state.MotivationUnderstood ||
			prev.ConstraintsAcknowledged && !state.ConstraintsAcknowledged ||
			prev.NextStepsDefined && !state.NextStepsDefined {
			t.Fatalf("turn %d cleared a flag: %+v -> %+v", i, prev, state)
		}
		prev = state
	}
	assert.True(t, state.GoalStated)
	assert.True(t, state.MotivationUnderstood)
}

func TestShouldEnd(t *testing.T) {
	all := domain.GoalTracking{GoalStated: true, MotivationUnderstood: true, NextStepsDefined: true}

	for turns := 0; turns < MinTurns; turns++ {
		assert.False(t, ShouldEnd(all, turns), "turn count %d", turns)
	}
	assert.True(t, ShouldEnd(all, 3))
	assert.True(t, ShouldEnd(all, 7))

	missing := all
	missing.NextStepsDefined = false
	assert.False(t, ShouldEnd(missing, 5))

	// Constraints are not part of the gate.
	assert.False(t, all.ConstraintsAcknowledged)
}
