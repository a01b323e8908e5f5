// Package turn runs one coaching turn end to end: transcription, prompt
// composition, gated generation, synthesis and the termination decision.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/voice-coach/internal/coaching"
	"github.com/ashureev/voice-coach/internal/convlog"
	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/ashureev/voice-coach/internal/shared"
	"github.com/ashureev/voice-coach/internal/speech"
	"github.com/ashureev/voice-coach/internal/store"
	"github.com/ashureev/voice-coach/internal/traits"
)

// State is a step of the turn state machine.
type State string

const (
	StateAwaitingTranscript State = "awaiting_transcript"
	StateTranscribing       State = "transcribing"
	StateComposing          State = "composing"
	StateGenerating         State = "generating"
	StateGating             State = "gating"
	StateSynthesizing       State = "synthesizing"
	StateTerminalCheck      State = "terminal_check"
	StateResponding         State = "responding"
)

// Event reports a state transition.
type Event struct {
	SessionID string    `json:"session_id"`
	Turn      int       `json:"turn"`
	State     State     `json:"state"`
	At        time.Time `json:"at"`
}

// Observer receives state transitions. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// StartInput creates a session.
type StartInput struct {
	Traits         []string
	IdempotencyKey string
	ClientID       string
}

// AudioDelivery selects how synthesized audio reaches the client.
type AudioDelivery string

const (
	// DeliverInline returns the audio bytes in the Result only.
	DeliverInline AudioDelivery = "inline"
	// DeliverURL stores the audio for a single fetch and returns its id only.
	DeliverURL AudioDelivery = "url"
)

// Input is one recorded user utterance.
type Input struct {
	SessionID string
	ClientID  string
	Audio     []byte
	MimeType  string
	Voice     speech.Voice
	Delivery  AudioDelivery // empty means inline
}

// Result is the outcome of a successful turn.
type Result struct {
	SessionID     string
	Transcript    string
	Response      string
	AudioID       string
	Audio         []byte
	AudioMimeType string
	TextOnly      bool
	TurnCount     int
	Goals         domain.GoalTracking
	Attempts      int
	Ended         bool
	Summary       string
}

// Deps are the collaborators of an Orchestrator. Transcriber, Generator and
// Synthesizer may be nil: a nil Synthesizer yields text-only turns, the others
// make turns fail with ErrUpstreamUnavailable.
type Deps struct {
	Store       store.Repository
	Transcriber speech.Transcriber
	Generator   speech.Generator
	Synthesizer speech.Synthesizer
	Catalog     *traits.Catalog
	ConvLog     convlog.Logger
	Logger      *slog.Logger
}

// Orchestrator runs coaching turns against a session store.
type Orchestrator struct {
	store       store.Repository
	transcriber speech.Transcriber
	generator   speech.Generator
	synthesizer speech.Synthesizer
	catalog     *traits.Catalog
	composer    *coaching.Composer
	gate        *coaching.Gate
	summarizer  *Summarizer
	convlog     convlog.Logger
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = traits.Default()
	}
	if deps.ConvLog == nil {
		deps.ConvLog = convlog.Noop{}
	}

	o := &Orchestrator{
		store:       deps.Store,
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		synthesizer: deps.Synthesizer,
		catalog:     deps.Catalog,
		composer:    coaching.NewComposer(deps.Catalog),
		summarizer:  NewSummarizer(deps.Generator, deps.Logger),
		convlog:     deps.ConvLog,
		logger:      deps.Logger,
		now:         time.Now,
	}
	if deps.Generator != nil {
		o.gate = coaching.NewGate(deps.Generator, deps.Logger)
	}
	return o
}

// Start validates the trait selection and creates a session.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (*domain.Session, error) {
	selected := make([]string, 0, len(in.Traits))
	for _, id := range in.Traits {
		if id = strings.TrimSpace(id); id != "" {
			selected = append(selected, id)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: at least one trait must be selected", ErrValidation)
	}
	if len(selected) > traits.MaxSelected {
		return nil, fmt.Errorf("%w: at most %d traits may be selected", ErrValidation, traits.MaxSelected)
	}
	for _, id := range selected {
		if !o.catalog.Known(id) {
			o.logger.Warn("Unknown trait selected", "trait", id)
		}
	}

	s, err := o.store.CreateDeduped(ctx, in.IdempotencyKey, selected)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.convlog.Log(convlog.Event{
		ClientID:  in.ClientID,
		SessionID: s.ID,
		EventType: convlog.EventSessionStart,
		Metadata:  map[string]any{"traits": s.Traits},
	})
	return s, nil
}

// Run executes one turn. obs may be nil.
//
// The session is leased for the whole turn. Nothing is written until the reply
// has passed the quality gate, so a failed or empty transcription, or a failed
// generation, leaves the session exactly as it was.
func (o *Orchestrator) Run(ctx context.Context, in Input, obs Observer) (*Result, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id required", ErrValidation)
	}
	if len(in.Audio) == 0 {
		return nil, fmt.Errorf("%w: audio required", ErrValidation)
	}

	lease, err := o.store.Acquire(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	work := lease.Session()
	turnNo := work.TurnCount + 1
	emit := func(st State) {
		if obs != nil {
			obs.Observe(Event{SessionID: in.SessionID, Turn: turnNo, State: st, At: o.now()})
		}
	}
	emit(StateAwaitingTranscript)

	if o.transcriber == nil || o.gate == nil {
		return nil, fmt.Errorf("%w: transcription and generation require GEMINI_API_KEY", ErrUpstreamUnavailable)
	}

	emit(StateTranscribing)
	transcript, err := o.transcriber.Transcribe(ctx, in.Audio, speech.NormalizeMimeType(in.MimeType))
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w: %w", ErrUpstreamFailure, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		o.logger.Warn("No speech detected", "session_id", in.SessionID, "bytes", len(in.Audio))
		return nil, ErrNoSpeech
	}

	emit(StateComposing)
	work.RecordUser(transcript)
	prompt := o.composer.Compose(coaching.PromptInput{
		UserMessage: transcript,
		Traits:      work.Traits,
		History:     work.Messages,
		Goals:       work.Goals,
		TurnCount:   work.TurnCount,
	})

	emit(StateGenerating)
	gated, err := o.gate.Run(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w: %w", ErrUpstreamFailure, err)
	}
	emit(StateGating)

	work.Goals = coaching.UpdateGoals(work.Goals, transcript, gated.Text)
	work.RecordAssistant(gated.Text)
	if err := lease.Commit(work); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	o.logger.Info("Turn completed",
		"session_id", in.SessionID,
		"turn", work.TurnCount,
		"attempts", gated.Attempts,
		"words", shared.WordCount(gated.Text),
		"goals", work.Goals,
	)
	o.convlog.Log(convlog.Event{
		ClientID:   in.ClientID,
		SessionID:  in.SessionID,
		Turn:       work.TurnCount,
		EventType:  convlog.EventUserTranscript,
		ContentRaw: transcript,
	})
	o.convlog.Log(convlog.Event{
		ClientID:   in.ClientID,
		SessionID:  in.SessionID,
		Turn:       work.TurnCount,
		EventType:  convlog.EventCoachReply,
		ContentRaw: gated.Text,
		Metadata:   map[string]any{"attempts": gated.Attempts, "clean": gated.Clean},
	})

	res := &Result{
		SessionID:  in.SessionID,
		Transcript: transcript,
		Response:   gated.Text,
		TurnCount:  work.TurnCount,
		Goals:      work.Goals,
		Attempts:   gated.Attempts,
	}

	emit(StateSynthesizing)
	o.synthesize(ctx, in, res)

	emit(StateTerminalCheck)
	if coaching.ShouldEnd(work.Goals, work.TurnCount) {
		res.Ended = true
		res.Summary = o.summarizer.Summarize(ctx, in.SessionID, work.Messages)
		if err := lease.Delete(); err != nil {
			o.logger.Warn("Failed to delete ended session", "session_id", in.SessionID, "error", err)
		}
		o.logEnd(in.ClientID, in.SessionID, work.TurnCount, res.Summary)
	}

	emit(StateResponding)
	return res, nil
}

// synthesize fills the audio fields of res, or marks it text-only.
func (o *Orchestrator) synthesize(ctx context.Context, in Input, res *Result) {
	if o.synthesizer == nil {
		res.TextOnly = true
		return
	}

	audio, err := o.synthesizer.Synthesize(ctx, coaching.SpeechText(res.Response), in.Voice)
	if err != nil {
		o.logger.Warn("Speech synthesis failed, returning text only",
			"session_id", in.SessionID,
			"turn", res.TurnCount,
			"error", err)
		res.TextOnly = true
		return
	}

	res.AudioMimeType = audio.MimeType
	if in.Delivery != DeliverURL {
		res.Audio = audio.Data
		return
	}

	id, err := o.store.PutAudio(ctx, audio.Data, audio.MimeType)
	if err != nil {
		o.logger.Warn("Failed to store audio, returning it inline", "session_id", in.SessionID, "error", err)
		res.Audio = audio.Data
		return
	}
	res.AudioID = id
}

// Summarize generates the written summary on request and ends the session.
func (o *Orchestrator) Summarize(ctx context.Context, sessionID, clientID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("%w: session id required", ErrValidation)
	}

	lease, err := o.store.Acquire(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	s := lease.Session()
	summary := o.summarizer.Summarize(ctx, sessionID, s.Messages)
	if err := lease.Delete(); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}

	o.logEnd(clientID, sessionID, s.TurnCount, summary)
	return summary, nil
}

func (o *Orchestrator) logEnd(clientID, sessionID string, turns int, summary string) {
	o.convlog.Log(convlog.Event{
		ClientID:   clientID,
		SessionID:  sessionID,
		Turn:       turns,
		EventType:  convlog.EventSummary,
		ContentRaw: summary,
	})
	o.convlog.Log(convlog.Event{
		ClientID:  clientID,
		SessionID: sessionID,
		Turn:      turns,
		EventType: convlog.EventSessionEnd,
	})
	o.logger.Info("Session ended", "session_id", sessionID, "turn", turns)
}
