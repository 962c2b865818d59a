package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/calyptra/prosegen/pkg/markov"
)

// EngineAPI holds the dependencies for the text generation API handlers.
type EngineAPI struct {
	engine *markov.Engine
	cfg    *EngineConfig
	logger *slog.Logger
}

// NewEngineAPI creates a new instance of the EngineAPI.
func NewEngineAPI(engine *markov.Engine, cfg *EngineConfig, logger *slog.Logger) *EngineAPI {
	return &EngineAPI{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all engine endpoints.
func (a *EngineAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", a.handleGenerate)
	mux.HandleFunc("/api/generate/batch", a.handleGenerateBatch)
	mux.HandleFunc("/api/engine/status", a.handleStatus)
	mux.HandleFunc("/api/engine/refresh", a.handleRefresh)
}

// GenerateResponse is the payload returned for a single generation.
type GenerateResponse struct {
	Text string `json:"text"`
}

// BatchRequest is the body accepted by the batch endpoint.
type BatchRequest struct {
	Count        int `json:"count"`
	MaxLength    int `json:"max_length"`
	MaxSentences int `json:"max_sentences"`
}

// BatchResponse reports the batch results; Produced may be lower than
// Requested when the engine exhausted its attempt budget.
type BatchResponse struct {
	Requested int      `json:"requested"`
	Produced  int      `json:"produced"`
	Results   []string `json:"results"`
}

// StatusResponse is the engine snapshot plus availability.
type StatusResponse struct {
	markov.EngineStatus
	Available bool `json:"available"`
}

// handleGenerate produces one string. Bounds come from query parameters and
// fall back to the configured defaults.
func (a *EngineAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	opts := a.generateOptions(
		queryInt(r, "max_length", a.cfg.MaxLength),
		queryInt(r, "max_sentences", a.cfg.MaxSentences),
	)

	text, err := a.engine.GenerateOne(r.Context(), opts...)
	if err != nil {
		a.logger.Error("Generation aborted", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Generation aborted")
		return
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Text: text})
}

// handleGenerateBatch produces up to count strings in one call.
func (a *EngineAPI) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Count <= 0 {
		respondWithError(w, http.StatusBadRequest, "A positive count is required")
		return
	}
	if req.Count > a.cfg.MaxBatchCount {
		req.Count = a.cfg.MaxBatchCount
	}
	if req.MaxLength <= 0 {
		req.MaxLength = a.cfg.MaxLength
	}
	if req.MaxSentences <= 0 {
		req.MaxSentences = a.cfg.MaxSentences
	}

	results, err := a.engine.GenerateBatch(r.Context(), req.Count, a.generateOptions(req.MaxLength, req.MaxSentences)...)
	if err != nil {
		a.logger.Error("Batch generation aborted", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Generation aborted")
		return
	}

	respondWithJSON(w, http.StatusOK, BatchResponse{
		Requested: req.Count,
		Produced:  len(results),
		Results:   results,
	})
}

// handleStatus reports the engine state, the tier that satisfied the last
// load, and whether a real corpus is available.
func (a *EngineAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{
		EngineStatus: a.engine.Status(),
		Available:    a.engine.IsAvailable(r.Context()),
	})
}

// handleRefresh evicts the cached corpus and rebuilds the model.
func (a *EngineAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := a.engine.Refresh(r.Context()); err != nil {
		a.logger.Error("Engine refresh failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}
	respondWithJSON(w, http.StatusOK, a.engine.Status())
}

// generateOptions converts request bounds into engine options.
func (a *EngineAPI) generateOptions(maxLength, maxSentences int) []markov.GenerateOption {
	return []markov.GenerateOption{
		markov.WithMaxLength(maxLength),
		markov.WithMaxSentences(maxSentences),
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
