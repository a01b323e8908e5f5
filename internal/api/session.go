package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/ashureev/voice-coach/internal/identity"
	"github.com/ashureev/voice-coach/internal/speech"
	"github.com/ashureev/voice-coach/internal/turn"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of MaxAudioBytes for form boundaries and fields.
const multipartOverhead = 1 << 20

// SessionHandler serves the coaching session endpoints.
type SessionHandler struct {
	*Handler
	orch     *turn.Orchestrator
	observer turn.Observer
	limiter  *RateLimiter
}

// NewSessionHandler creates a session handler. observer may be nil.
func NewSessionHandler(base *Handler, orch *turn.Orchestrator, observer turn.Observer, limiter *RateLimiter) *SessionHandler {
	return &SessionHandler{Handler: base, orch: orch, observer: observer, limiter: limiter}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/turn", h.Turn)
		r.Post("/summary", h.Summary)
		r.Get("/audio/{id}", h.Audio)
	})
}

type startRequest struct {
	Traits []string `json:"traits"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
}

// Start creates a session from the selected traits.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}

	s, err := h.orch.Start(r.Context(), turn.StartInput{
		Traits:         req.Traits,
		IdempotencyKey: r.Header.Get(identity.IdempotencyHeaderName),
		ClientID:       identity.ClientIDFromContext(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, "start", err)
		return
	}

	JSON(w, http.StatusOK, startResponse{SessionID: s.ID})
}

type turnResponse struct {
	SessionEnded bool                `json:"sessionEnded"`
	Response     string              `json:"response"`
	Transcript   string              `json:"transcript"`
	AudioID      string              `json:"audioId,omitempty"`
	AudioURL     string              `json:"audioUrl,omitempty"`
	AudioBase64  string              `json:"audioBase64,omitempty"`
	AudioMime    string              `json:"audioMimeType,omitempty"`
	TextOnly     bool                `json:"textOnly"`
	TurnCount    int                 `json:"turnCount"`
	Goals        domain.GoalTracking `json:"goalTracking"`
	Summary      string              `json:"summary,omitempty"`
}

// Turn accepts one recorded utterance as multipart form data.
func (h *SessionHandler) Turn(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	limitKey := clientID
	if limitKey == "" {
		limitKey = identity.IPFromRequest(r)
	}
	if h.limiter != nil && !h.limiter.Allow(limitKey) {
		ErrorWithCode(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests. Please slow down.")
		return
	}

	maxAudio := h.cfg.MaxAudioBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxAudio+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorWithCode(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Audio upload too large")
			return
		}
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "Missing audio file or session ID")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		sessionID = identity.SanitizeSessionID(r.FormValue("sessionId"))
	}

	file, header, err := r.FormFile("audio")
	if err != nil || sessionID == "" {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "Missing audio file or session ID")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudio+1))
	if err != nil {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "Failed to read audio upload")
		return
	}
	if int64(len(audio)) > maxAudio {
		ErrorWithCode(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Audio upload too large")
		return
	}

	voice, err := voiceFromForm(r)
	if err != nil {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	delivery := turn.AudioDelivery(r.FormValue("audioDelivery"))
	if delivery != "" && delivery != turn.DeliverInline && delivery != turn.DeliverURL {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, fmt.Sprintf("unsupported audioDelivery %q", delivery))
		return
	}

	ctx := r.Context()
	if h.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.TurnTimeout)
		defer cancel()
	}

	res, err := h.orch.Run(ctx, turn.Input{
		SessionID: sessionID,
		ClientID:  clientID,
		Audio:     audio,
		MimeType:  header.Header.Get("Content-Type"),
		Voice:     voice,
		Delivery:  delivery,
	}, h.observer)
	if err != nil {
		h.writeError(w, r, "turn", err)
		return
	}
	if res.Ended {
		h.closeStream(sessionID)
	}

	JSON(w, http.StatusOK, newTurnResponse(res))
}

// closeStream ends live state streams once a session is gone.
func (h *SessionHandler) closeStream(sessionID string) {
	if c, ok := h.observer.(interface{ CloseSession(string) }); ok {
		c.CloseSession(sessionID)
	}
}

func newTurnResponse(res *turn.Result) turnResponse {
	out := turnResponse{
		SessionEnded: res.Ended,
		Response:     res.Response,
		Transcript:   res.Transcript,
		TextOnly:     res.TextOnly,
		TurnCount:    res.TurnCount,
		Goals:        res.Goals,
		Summary:      res.Summary,
	}
	out.AudioMime = res.AudioMimeType
	if len(res.Audio) > 0 {
		out.AudioBase64 = base64.StdEncoding.EncodeToString(res.Audio)
	}
	if res.AudioID != "" {
		out.AudioID = res.AudioID
		out.AudioURL = "/api/session/audio/" + res.AudioID
	}
	return out
}

func voiceFromForm(r *http.Request) (speech.Voice, error) {
	v := speech.Voice{
		ID:       r.FormValue("voiceId"),
		Language: r.FormValue("language"),
		Engine:   r.FormValue("engine"),
	}
	if v.Language != "" && !slices.Contains(speech.Languages, v.Language) {
		return v, fmt.Errorf("unsupported language %q", v.Language)
	}
	if v.Engine != "" && !slices.Contains(speech.Engines, v.Engine) {
		return v, fmt.Errorf("unsupported engine %q", v.Engine)
	}
	return v, nil
}

type summaryRequest struct {
	SessionID string `json:"sessionId"`
}

// Summary generates the written summary and ends the session.
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
			return
		}
	}

	sessionID := identity.SanitizeSessionID(req.SessionID)
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if sessionID == "" {
		ErrorWithCode(w, http.StatusBadRequest, CodeValidation, "Session ID required")
		return
	}

	summary, err := h.orch.Summarize(r.Context(), sessionID, identity.ClientIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, "summary", err)
		return
	}
	h.closeStream(sessionID)

	JSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// Audio serves a synthesized reply once.
func (h *SessionHandler) Audio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "Missing audio ID")
		return
	}

	a, err := h.repo.TakeAudio(r.Context(), id)
	if err != nil {
		Error(w, http.StatusNotFound, "Audio not found")
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
