package coaching

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/ashureev/voice-coach/internal/traits"
)

// HistoryWindow is how many log entries are shown to the model.
const HistoryWindow = 6

const principles = `You are a voice-based AI coach helping users clarify career or academic goals and create actionable next steps.

COACHING PRINCIPLES:
1. Reflect before advising - Always acknowledge what the user said before offering guidance
2. Avoid overwhelming - Keep responses clear and focused
3. Limit action steps - Provide 2-4 concrete next steps
4. Ask clarifying questions - Until the goal is clearly stated
5. Gently redirect - Keep focus on career/academic goals
6. Maintain flexibility - Scope is moderately flexible but centered on goals`

const closingInstructions = `This is the FINAL response. The session should end. You MUST:
1. Explicitly signal closure ("Before we wrap up..." or similar)
2. Summarize the user's goal clearly
3. List 2-4 concrete next steps
4. Offer a written summary
5. Keep it concise (3-4 sentences total)`

const continuingInstructions = `Respond naturally as a coach. Use %s.
Aim for 120–180 words and 5–8 complete sentences. Include at least one reflective question. Do not use fragments. Output only the response text.`

const spokenNote = "IMPORTANT: Your response will be converted to speech. Write naturally as if speaking, not writing."

// PromptInput is everything the composer needs for one turn.
type PromptInput struct {
	UserMessage string
	Traits      []string
	History     []domain.Message // full log, including the current user message
	Goals       domain.GoalTracking
	TurnCount   int
}

// Composer builds the instruction block sent to the language model.
type Composer struct {
	catalog *traits.Catalog
}

// NewComposer returns a composer resolving traits against catalog.
// A nil catalog uses the built-in one.
func NewComposer(catalog *traits.Catalog) *Composer {
	if catalog == nil {
		catalog = traits.Default()
	}
	return &Composer{catalog: catalog}
}

// Compose renders the coaching prompt for one turn.
func (c *Composer) Compose(in PromptInput) string {
	profile := c.catalog.Resolve(in.Traits)
	final := ShouldEnd(in.Goals, in.TurnCount)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(principles)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "PERSONALITY TRAITS (%s):\n", strings.Join(in.Traits, ", "))
	fmt.Fprintf(&b, "- Tone: %s\n", profile.Tone)
	fmt.Fprintf(&b, "- Question-to-advice ratio: %d%% questions, %d%% advice\n",
		percent(profile.QuestionRatio), percent(1-profile.QuestionRatio))
	fmt.Fprintf(&b, "- Structure level: %s\n", profile.StructureLevel)
	fmt.Fprintf(&b, "- Framework usage: %s\n", frameworkDirective(profile.FrameworkUsage))
	fmt.Fprintf(&b, "- Pacing: %s\n\n", profile.Pacing)

	b.WriteString("GOAL TRACKING CHECKLIST (internal only, never mention to user):\n")
	fmt.Fprintf(&b, "- Goal clearly stated: %s\n", yesNo(in.Goals.GoalStated))
	fmt.Fprintf(&b, "- Motivation understood: %s\n", yesNo(in.Goals.MotivationUnderstood))
	fmt.Fprintf(&b, "- Constraints acknowledged: %s\n", yesNo(in.Goals.ConstraintsAcknowledged))
	fmt.Fprintf(&b, "- Next steps defined: %s\n\n", yesNo(in.Goals.NextStepsDefined))

	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(renderHistory(recent(in.History, HistoryWindow)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "CURRENT USER MESSAGE: %s\n\n", in.UserMessage)

	b.WriteString("INSTRUCTIONS:\n")
	if final {
		b.WriteString(closingInstructions)
	} else {
		fmt.Fprintf(&b, continuingInstructions, balanceDirective(profile.QuestionRatio))
	}
	b.WriteString("\n\n")
	b.WriteString(spokenNote)
	b.WriteString("\n")

	return b.String()
}

// SummaryPrompt asks for the written end-of-session summary.
func SummaryPrompt(messages []domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, speakerLabel(m.Role)+": "+m.Content)
	}

	return "Based on this coaching conversation, generate a concise written summary (3-4 paragraphs) that includes:\n" +
		"1. The user's clarified goal\n" +
		"2. Key insights discussed\n" +
		"3. 2-4 concrete action steps\n\n" +
		"Conversation:\n" + strings.Join(lines, "\n\n") + "\n\nSummary:"
}

func renderHistory(messages []domain.Message) string {
	if len(messages) == 0 {
		return "No previous conversation"
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, speakerLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func recent(messages []domain.Message, n int) []domain.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func speakerLabel(r domain.Role) string {
	if r == domain.RoleUser {
		return "User"
	}
	return "Coach"
}

func balanceDirective(ratio float64) string {
	switch {
	case ratio > 0.6:
		return "mostly questions"
	case ratio < 0.4:
		return "mostly advice"
	default:
		return "a balance of questions and advice"
	}
}

func frameworkDirective(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "avoid formal frameworks"
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func percent(r float64) int {
	return int(math.Round(r * 100))
}
