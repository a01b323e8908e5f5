package coaching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ashureev/voice-coach/internal/shared"
	"github.com/ashureev/voice-coach/internal/speech"
)

// MinWords is the word-count floor below which a reply is regenerated.
const MinWords = 90

// ErrEmptyResponse is returned when the gated reply normalizes to nothing.
var ErrEmptyResponse = errors.New("AI response was empty")

// Generation settings for each gate attempt.
var (
	initialOptions = speech.GenerateOptions{Temperature: 0.7, MaxTokens: 500}
	rewriteOptions = speech.GenerateOptions{Temperature: 0.5, MaxTokens: 500}
	regenOptions   = speech.GenerateOptions{Temperature: 0.4, MaxTokens: 600}
)

const rewriteTemplate = "Rewrite the following coaching response so it is 120–180 words and composed of complete, well-formed sentences. " +
	"Keep the same meaning and tone. Do not add new topics. Include at least one reflective question. Avoid fragments.\n\nResponse:\n%s"

const hardRequirement = "\n\nIMPORTANT: You MUST output 120–180 words in 5–8 complete sentences with at least one reflective question. " +
	"No fragments. Output only the response text."

// Words that should not end a finished spoken reply.
var danglingWords = map[string]struct{}{
	"and": {}, "but": {}, "because": {}, "so": {}, "or": {}, "with": {}, "to": {},
	"of": {}, "that": {}, "which": {}, "who": {}, "i": {}, "we": {}, "you": {},
}

var (
	lineBreaks   = regexp.MustCompile(`[\r\n]+`)
	markdownRuns = regexp.MustCompile("[*_`>#-]+")
	bulletRuns   = regexp.MustCompile(`[•·]+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// LooksTruncated reports whether text appears cut off mid-sentence: it is empty,
// or its final word (ignoring one trailing period) is a conjunction, preposition
// or pronoun that cannot close a sentence.
func LooksTruncated(text string) bool {
	words := shared.Words(text)
	if len(words) == 0 {
		return true
	}
	last := strings.ToLower(words[len(words)-1])
	last = strings.TrimSuffix(last, ".")
	_, dangling := danglingWords[last]
	return dangling
}

// NeedsRepair reports whether a generated reply fails the shape checks.
func NeedsRepair(text string) bool {
	return shared.WordCount(text) < MinWords ||
		LooksTruncated(text) ||
		!shared.EndsWithTerminalPunctuation(text)
}

// SpeechText flattens markdown-ish formatting into plain spoken text.
func SpeechText(text string) string {
	t := lineBreaks.ReplaceAllString(text, " ")
	t = markdownRuns.ReplaceAllString(t, " ")
	t = bulletRuns.ReplaceAllString(t, " ")
	t = spaceRuns.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Normalize prepares a reply for speech and guarantees terminal punctuation.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	t := SpeechText(text)
	if t != "" && !shared.EndsWithTerminalPunctuation(t) {
		t += "."
	}
	return t
}

// GateResult describes the outcome of the quality gate.
type GateResult struct {
	Text     string
	Attempts int
	// Clean is false when the final attempt still needed repair and was accepted anyway.
	Clean bool
}

// Gate regenerates replies that fail NeedsRepair, at most twice, then normalizes.
type Gate struct {
	gen    speech.Generator
	logger *slog.Logger
}

// NewGate creates a quality gate backed by gen.
func NewGate(gen speech.Generator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{gen: gen, logger: logger}
}

// Run generates a reply for prompt and repairs it if needed. Generation errors
// abort the run; a reply that is still defective after both repairs is accepted.
func (g *Gate) Run(ctx context.Context, prompt string) (GateResult, error) {
	text, err := g.gen.Generate(ctx, prompt, initialOptions)
	if err != nil {
		return GateResult{}, fmt.Errorf("generate reply: %w", err)
	}
	attempts := 1

	if NeedsRepair(text) {
		g.logger.Info("Reply failed quality checks, rewriting",
			"attempt", attempts,
			"words", shared.WordCount(text),
			"truncated", LooksTruncated(text),
		)
		text, err = g.gen.Generate(ctx, fmt.Sprintf(rewriteTemplate, text), rewriteOptions)
		if err != nil {
			return GateResult{}, fmt.Errorf("rewrite reply: %w", err)
		}
		attempts++
	}

	if NeedsRepair(text) {
		g.logger.Info("Rewritten reply still defective, regenerating",
			"attempt", attempts,
			"words", shared.WordCount(text),
		)
		text, err = g.gen.Generate(ctx, prompt+hardRequirement, regenOptions)
		if err != nil {
			return GateResult{}, fmt.Errorf("regenerate reply: %w", err)
		}
		attempts++
	}

	clean := !NeedsRepair(text)
	if !clean {
		g.logger.Warn("Accepting reply after exhausting repairs",
			"attempts", attempts,
			"words", shared.WordCount(text),
		)
	}

	out := Normalize(text)
	if out == "" {
		return GateResult{}, ErrEmptyResponse
	}
	return GateResult{Text: out, Attempts: attempts, Clean: clean}, nil
}
