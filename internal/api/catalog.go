package api

import (
	"net/http"

	"github.com/ashureev/voice-coach/internal/coaching"
	"github.com/ashureev/voice-coach/internal/config"
	"github.com/ashureev/voice-coach/internal/speech"
	"github.com/ashureev/voice-coach/internal/traits"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler serves static client configuration.
type CatalogHandler struct {
	*Handler
	catalog     *traits.Catalog
	synthesis   string
	transcribes bool
}

// NewCatalogHandler creates a catalog handler. synthesis is the resolved
// provider name; transcribes reports whether a transcription provider is set.
func NewCatalogHandler(base *Handler, catalog *traits.Catalog, synthesis string, transcribes bool) *CatalogHandler {
	if catalog == nil {
		catalog = traits.Default()
	}
	return &CatalogHandler{Handler: base, catalog: catalog, synthesis: synthesis, transcribes: transcribes}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/traits", h.Traits)
	r.Get("/api/config", h.GetConfig)
}

// Traits returns the selectable trait catalog.
func (h *CatalogHandler) Traits(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"categories":  h.catalog.Categories,
		"maxSelected": traits.MaxSelected,
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *CatalogHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"transcriptionEnabled": h.transcribes,
		"synthesisProvider":    h.synthesis,
		"textOnly":             h.synthesis == config.SynthesisNone,
		"languages":            speech.Languages,
		"engines":              speech.Engines,
		"maxAudioBytes":        h.cfg.MaxAudioBytes,
		"minTurns":             coaching.MinTurns,
	})
}
