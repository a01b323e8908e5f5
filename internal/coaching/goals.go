// Package coaching holds the per-turn coaching logic: goal tracking, prompt
// composition and the response quality gate.
package coaching

import (
	"strings"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/ashureev/voice-coach/internal/shared"
)

// MinTurns is the fewest user turns before a session may close.
const MinTurns = 3

// Keyword lists are matched as lower-case substrings.
var (
	goalKeywords       = []string{"goal", "want to", "aim to", "plan to", "hope to", "dream"}
	motivationKeywords = []string{"because", "motivated", "interested", "passion", "excited"}
	constraintKeywords = []string{"but", "however", "limited", "constraint", "challenge", "difficulty"}
	actionKeywords     = []string{"next step", "action", "do", "will", "plan", "task"}
	understandingCue   = "understand"
)

// UpdateGoals returns prev with any flag set whose heuristic fires on this turn.
// User text drives goal, motivation and constraint detection; the coach reply
// drives next-step detection, and an acknowledgment of understanding in the reply
// counts as motivation once a goal has been stated. Flags never clear.
func UpdateGoals(prev domain.GoalTracking, userText, reply string) domain.GoalTracking {
	user := strings.ToLower(userText)
	coach := strings.ToLower(reply)

	return prev.Merge(domain.GoalTracking{
		GoalStated: shared.ContainsAny(user, goalKeywords),
		MotivationUnderstood: shared.ContainsAny(user, motivationKeywords) ||
			(prev.GoalStated && strings.Contains(coach, understandingCue)),
		ConstraintsAcknowledged: shared.ContainsAny(user, constraintKeywords),
		NextStepsDefined:        shared.ContainsAny(coach, actionKeywords),
	})
}

// ShouldEnd reports whether the session has enough evidence to close.
// ConstraintsAcknowledged does not participate.
func ShouldEnd(goals domain.GoalTracking, turnCount int) bool {
	return goals.GoalStated &&
		goals.MotivationUnderstood &&
		goals.NextStepsDefined &&
		turnCount >= MinTurns
}
