package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/voice-coach/internal/config"
	"github.com/ashureev/voice-coach/internal/identity"
	"github.com/ashureev/voice-coach/internal/speech"
	"github.com/ashureev/voice-coach/internal/store"
	"github.com/ashureev/voice-coach/internal/traits"
	"github.com/ashureev/voice-coach/internal/turn"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return s.text, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, prompt string, _ speech.GenerateOptions) (string, error) {
	if strings.HasPrefix(prompt, "Based on this coaching conversation") {
		return "A short written summary.", nil
	}
	return strings.Repeat("I hear how much this matters to you. ", 15) +
		"Your next step is to list three roles you admire. What stands out?", nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(context.Context, string, speech.Voice) (speech.Audio, error) {
	return speech.Audio{Data: []byte("ID3-mp3"), MimeType: "audio/mpeg"}, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	states []turn.State
}

func (o *recordingObserver) Observe(ev turn.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, ev.State)
}

type testServer struct {
	*httptest.Server
	repo     *store.Memory
	observer *recordingObserver
}

func newTestServer(t *testing.T, transcript string, rateLimit int) *testServer {
	t.Helper()
	cfg := &config.Config{MaxAudioBytes: 1024, TurnTimeout: 5 * time.Second}
	repo := store.NewMemory(store.Options{})
	t.Cleanup(func() { _ = repo.Close() })

	orch := turn.New(turn.Deps{
		Store:       repo,
		Transcriber: stubTranscriber{text: transcript},
		Generator:   stubGenerator{},
		Synthesizer: stubSynthesizer{},
	})
	base := NewHandler(repo, cfg, nil)
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewSessionHandler(base, orch, obs, NewRateLimiter(rateLimit, time.Minute)).RegisterRoutes(r)
	NewCatalogHandler(base, traits.Default(), config.SynthesisElevenLabs, true).RegisterRoutes(r)
	NewHealthHandler(base, map[string]bool{"transcription": true}).RegisterHealth(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo, observer: obs}
}

func (s *testServer) start(t *testing.T, traitIDs ...string) string {
	t.Helper()
	body, _ := json.Marshal(map[string][]string{"traits": traitIDs})
	resp, err := http.Post(s.URL+"/api/session/start", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out startResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func turnRequest(t *testing.T, url, sessionID string, audio []byte, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if sessionID != "" {
		require.NoError(t, mw.WriteField("sessionId", sessionID))
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	if audio != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="audio"; filename="turn.webm"`)
		h.Set("Content-Type", "audio/webm;codecs=opus")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write(audio)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/session/turn", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStartValidation(t *testing.T) {
	srv := newTestServer(t, "hello", 10)

	for _, body := range []string{`{"traits":[]}`, `{"traits":["a","b","c","d"]}`, `not json`} {
		resp, err := http.Post(srv.URL+"/api/session/start", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var out map[string]string
		decode(t, resp, &out)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, CodeValidation, out["code"], body)
	}
}

func TestStartWithIdempotencyKeyReturnsOneSession(t *testing.T) {
	srv := newTestServer(t, "hello", 10)

	// Called from several goroutines, so only assert.
	post := func() string {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/session/start", strings.NewReader(`{"traits":["calm"]}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(identity.IdempotencyHeaderName, "setup-1")
		resp, err := http.DefaultClient.Do(req)
		if !assert.NoError(t, err) {
			return ""
		}
		defer resp.Body.Close()
		var out startResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		return out.SessionID
	}

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = post()
		}(i)
	}
	wg.Wait()
	ids = append(ids, post())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, srv.repo.Len())
}

func TestTurnFlowToSummary(t *testing.T) {
	srv := newTestServer(t, "I want to move into design because I love visual work", 10)
	id := srv.start(t, "empathetic", "analytical")

	for i := 1; i <= 3; i++ {
		fields := map[string]string{"language": "en-US"}
		if i == 3 {
			fields["audioDelivery"] = "url"
		}
		resp, err := http.DefaultClient.Do(turnRequest(t, srv.URL, id, []byte("audio"), fields))
		require.NoError(t, err)
		var out turnResponse
		decode(t, resp, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, i, out.TurnCount)
		assert.NotEmpty(t, out.Response)
		assert.False(t, out.TextOnly)
		assert.Equal(t, "audio/mpeg", out.AudioMime)

		if i < 3 {
			raw, err := base64.StdEncoding.DecodeString(out.AudioBase64)
			require.NoError(t, err)
			assert.Equal(t, "ID3-mp3", string(raw))
			assert.Empty(t, out.AudioURL)
			assert.Zero(t, srv.repo.Stats().Audio, "inline audio is not retained")
			assert.False(t, out.SessionEnded)
			continue
		}
		assert.Empty(t, out.AudioBase64)
		assert.Equal(t, "/api/session/audio/"+out.AudioID, out.AudioURL)
		assert.True(t, out.SessionEnded)
		assert.Equal(t, "A short written summary.", out.Summary)

		audio, err := http.Get(srv.URL + out.AudioURL)
		require.NoError(t, err)
		data, _ := io.ReadAll(audio.Body)
		audio.Body.Close()
		assert.Equal(t, http.StatusOK, audio.StatusCode)
		assert.Equal(t, "audio/mpeg", audio.Header.Get("Content-Type"))
		assert.Equal(t, "ID3-mp3", string(data))

		again, err := http.Get(srv.URL + out.AudioURL)
		require.NoError(t, err)
		again.Body.Close()
		assert.Equal(t, http.StatusNotFound, again.StatusCode, "audio is served once")
	}

	resp, err := http.DefaultClient.Do(turnRequest(t, srv.URL, id, []byte("audio"), nil))
	require.NoError(t, err)
	var out map[string]string
	decode(t, resp, &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeSessionNotFound, out["code"])

	srv.observer.mu.Lock()
	defer srv.observer.mu.Unlock()
	assert.Contains(t, srv.observer.states, turn.StateTerminalCheck)
}

func TestTurnSessionIDFromHeader(t *testing.T) {
	srv := newTestServer(t, "hello there", 10)
	id := srv.start(t, "calm")

	req := turnRequest(t, srv.URL, "", []byte("audio"), nil)
	req.Header.Set(identity.SessionHeaderName, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var out turnResponse
	decode(t, resp, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, out.TurnCount)
}

func TestTurnRejections(t *testing.T) {
	srv := newTestServer(t, "   ", 10)
	id := srv.start(t, "calm")

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"missing audio", turnRequest(t, srv.URL, id, nil, nil), http.StatusBadRequest, CodeValidation},
		{"missing session", turnRequest(t, srv.URL, "", []byte("audio"), nil), http.StatusBadRequest, CodeValidation},
		{"too large", turnRequest(t, srv.URL, id, bytes.Repeat([]byte("a"), 2048), nil), http.StatusRequestEntityTooLarge, CodePayloadTooLarge},
		{"bad language", turnRequest(t, srv.URL, id, []byte("audio"), map[string]string{"language": "xx-XX"}), http.StatusBadRequest, CodeValidation},
		{"bad audio delivery", turnRequest(t, srv.URL, id, []byte("audio"), map[string]string{"audioDelivery": "stream"}), http.StatusBadRequest, CodeValidation},
		{"no speech", turnRequest(t, srv.URL, id, []byte("audio"), nil), http.StatusBadRequest, CodeNoSpeech},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.DefaultClient.Do(tt.req)
			require.NoError(t, err)
			var out map[string]string
			decode(t, resp, &out)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, out["code"])
		})
	}

	s, err := srv.repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, s.TurnCount, "rejected turns never mutate the session")
}

func TestTurnRateLimited(t *testing.T) {
	srv := newTestServer(t, "hello", 1)
	id := srv.start(t, "calm")

	jar := &cookieJar{}
	client := &http.Client{Jar: jar}

	resp, err := client.Do(turnRequest(t, srv.URL, id, []byte("audio"), nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Do(turnRequest(t, srv.URL, id, []byte("audio"), nil))
	require.NoError(t, err)
	var out map[string]string
	decode(t, resp, &out)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, CodeRateLimited, out["code"])
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t, "hello", 10)
	id := srv.start(t, "calm")

	resp, err := http.Post(srv.URL+"/api/session/summary", "application/json", strings.NewReader(`{"sessionId":"`+id+`"}`))
	require.NoError(t, err)
	var out map[string]string
	decode(t, resp, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A short written summary.", out["summary"])

	resp, err = http.Post(srv.URL+"/api/session/summary", "application/json", strings.NewReader(`{"sessionId":"`+id+`"}`))
	require.NoError(t, err)
	decode(t, resp, &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/session/summary", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	decode(t, resp, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalogAndHealth(t *testing.T) {
	srv := newTestServer(t, "hello", 10)

	resp, err := http.Get(srv.URL + "/api/traits")
	require.NoError(t, err)
	var catalog struct {
		Categories  []traits.Category `json:"categories"`
		MaxSelected int               `json:"maxSelected"`
	}
	decode(t, resp, &catalog)
	assert.Len(t, catalog.Categories, 4)
	assert.Equal(t, 3, catalog.MaxSelected)

	resp, err = http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	var cfg map[string]any
	decode(t, resp, &cfg)
	assert.Equal(t, "elevenlabs", cfg["synthesisProvider"])
	assert.Equal(t, false, cfg["textOnly"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	decode(t, resp, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])

	require.NoError(t, srv.repo.Close())
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	decode(t, resp, &health)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// cookieJar keeps the anonymous client cookie between requests.
type cookieJar struct {
	mu      sync.Mutex
	cookies []*http.Cookie
}

func (j *cookieJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = cookies
}

func (j *cookieJar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cookies
}
