package turn

import (
	"errors"

	"github.com/ashureev/voice-coach/internal/store"
)

// NoSpeechMessage is shown to the user when the recording contained no words.
const NoSpeechMessage = "No speech detected in audio. Please try speaking again."

var (
	// ErrValidation marks malformed requests: missing session id, empty audio,
	// wrong trait count.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound marks unknown or expired session ids.
	ErrNotFound = store.ErrNotFound
	// ErrBusy marks a session already serving another turn or summary.
	ErrBusy = store.ErrBusy
	// ErrNoSpeech marks an empty transcript. The session is left untouched.
	ErrNoSpeech = errors.New(NoSpeechMessage)
	// ErrUpstreamUnavailable marks a missing transcription or generation provider.
	ErrUpstreamUnavailable = errors.New("upstream service not configured")
	// ErrUpstreamFailure marks a failed transcription or generation call.
	ErrUpstreamFailure = errors.New("upstream service failed")
)
