package speech

import (
	"regexp"
	"strings"
)

// DefaultChunkChars is the synthesis request size used when splitting long replies.
const DefaultChunkChars = 600

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// SplitSentences groups text into chunks of whole sentences no longer than
// maxChars. A single sentence longer than maxChars becomes its own chunk.
func SplitSentences(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	var chunks []string
	var current string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		next := s
		if current != "" {
			next = current + " " + s
		}
		if len(next) > maxChars && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = s
			continue
		}
		current = next
	}
	if c := strings.TrimSpace(current); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}
