package turn

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ashureev/voice-coach/internal/coaching"
	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/ashureev/voice-coach/internal/speech"
)

// Summary texts returned instead of an error.
const (
	SummaryNotConfigured = "Summary generation unavailable - API key not configured"
	SummaryEmpty         = "Summary unavailable"
	SummaryFailed        = "Summary generation failed. Please try again."
)

var summaryOptions = speech.GenerateOptions{Temperature: 0.5, MaxTokens: 500}

// Summarizer writes the end-of-session summary. It never fails; problems are
// reported through the fallback texts.
type Summarizer struct {
	gen    speech.Generator
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer. gen may be nil.
func NewSummarizer(gen speech.Generator, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{gen: gen, logger: logger}
}

// Summarize condenses the conversation log.
func (s *Summarizer) Summarize(ctx context.Context, sessionID string, messages []domain.Message) string {
	if s.gen == nil {
		return SummaryNotConfigured
	}

	text, err := s.gen.Generate(ctx, coaching.SummaryPrompt(messages), summaryOptions)
	if err != nil {
		s.logger.Error("Summary generation failed", "session_id", sessionID, "error", err)
		return SummaryFailed
	}
	if strings.TrimSpace(text) == "" {
		return SummaryEmpty
	}
	return text
}
