package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/voice-coach/internal/api"
	"github.com/ashureev/voice-coach/internal/config"
	"github.com/ashureev/voice-coach/internal/convlog"
	"github.com/ashureev/voice-coach/internal/identity"
	"github.com/ashureev/voice-coach/internal/middleware"
	"github.com/ashureev/voice-coach/internal/speech"
	"github.com/ashureev/voice-coach/internal/store"
	"github.com/ashureev/voice-coach/internal/stream"
	"github.com/ashureev/voice-coach/internal/traits"
	"github.com/ashureev/voice-coach/internal/turn"
	"github.com/ashureev/voice-coach/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// providers holds whichever speech adapters could be configured.
type providers struct {
	gemini      *speech.Gemini
	synthesizer speech.Synthesizer
	synthesis   string
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	p, err := buildProviders(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize speech providers", "error", err)
		return err
	}

	convLogger, err := convlog.New(convlog.Config{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize conversation logger", "error", err)
		return err
	}
	defer func() {
		if closeErr := convLogger.Close(); closeErr != nil {
			logger.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	repo := store.NewMemory(store.Options{
		SessionTTL: cfg.Session.TTL,
		AudioTTL:   cfg.Session.AudioTTL,
		Logger:     logger,
	})
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()

	catalog := traits.Default()
	deps := turn.Deps{
		Store:   repo,
		Catalog: catalog,
		ConvLog: convLogger,
		Logger:  logger,
	}
	if p.gemini != nil {
		deps.Transcriber = p.gemini
		deps.Generator = p.gemini
	}
	if p.synthesizer != nil {
		deps.Synthesizer = p.synthesizer
	}
	orch := turn.New(deps)
	hub := stream.NewHub(logger)
	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)

	base := api.NewHandler(repo, cfg, logger)
	sessionHandler := api.NewSessionHandler(base, orch, hub, limiter)
	catalogHandler := api.NewCatalogHandler(base, catalog, p.synthesis, p.gemini != nil)
	healthHandler := api.NewHealthHandler(base, map[string]bool{
		"transcription": p.gemini != nil,
		"generation":    p.gemini != nil,
		"synthesis":     p.synthesizer != nil,
	})
	wsHandler := stream.NewWebSocketHandler(repo, hub, cfg.AllowedOrigins, cfg.IsDevelopment(), logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	catalogHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)
	r.Get("/ws/session", wsHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: turns are bounded by TURN_TIMEOUT and the stream
	// endpoint is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeperDone := repo.StartSweeper(gctx, cfg.Session.SweepInterval)
	limiter.StartEviction(gctx)
	hub.StartEviction(gctx, cfg.Session.TTL)
	logger.Info("TTL sweeper started", "session_ttl", cfg.Session.TTL, "audio_ttl", cfg.Session.AudioTTL)

	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-sweeperDone
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func buildProviders(ctx context.Context, cfg *config.Config) (*providers, error) {
	p := &providers{synthesis: cfg.SynthesisProvider()}

	gem, err := speech.NewGemini(ctx, speech.GeminiConfig{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		TTSModel: cfg.Gemini.TTSModel,
		TTSVoice: cfg.Gemini.TTSVoice,
	}, logger)
	switch {
	case errors.Is(err, speech.ErrNotConfigured):
		logger.Warn("GEMINI_API_KEY not set, turns will fail with upstream_unavailable")
	case err != nil:
		return nil, err
	default:
		p.gemini = gem
	}

	switch p.synthesis {
	case config.SynthesisElevenLabs:
		el, err := speech.NewElevenLabs(speech.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
			Model:   cfg.ElevenLabs.Model,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: %w", err)
		}
		p.synthesizer = el
	case config.SynthesisGemini:
		if p.gemini == nil {
			return nil, fmt.Errorf("SYNTHESIS_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		p.synthesizer = p.gemini
	default:
		logger.Info("Speech synthesis disabled, replies will be text only")
	}

	return p, nil
}
