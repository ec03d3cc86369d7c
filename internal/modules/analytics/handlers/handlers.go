// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/internal/modules/optimization"
	"github.com/aristath/qtop/internal/modules/universe"
)

// AnalyticsService is the subset of analytics.Service the handlers call
type AnalyticsService interface {
	AnalyzePortfolio(ctx context.Context, holdings []domain.Holding) (*domain.PortfolioSnapshot, error)
	AnalyzePortfolioByID(ctx context.Context, portfolioID int64) (*domain.PortfolioSnapshot, error)
	GenerateStockRecommendation(ctx context.Context, symbol string) (*domain.StockRecommendation, error)
	RecommendUniverse(ctx context.Context, strategy optimization.Strategy) (*domain.PortfolioRecommendation, error)
}

// RecommendationReader reads stored stock recommendations
type RecommendationReader interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.StockRecommendation, error)
	List(ctx context.Context) ([]domain.StockRecommendation, error)
}

// Handler handles analytics HTTP requests
type Handler struct {
	service         AnalyticsService
	recommendations RecommendationReader
	defaultStrategy optimization.Strategy
	log             zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(
	service AnalyticsService,
	recommendations RecommendationReader,
	defaultStrategy optimization.Strategy,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:         service,
		recommendations: recommendations,
		defaultStrategy: defaultStrategy,
		log:             log.With().Str("handler", "analytics").Logger(),
	}
}

// AnalyzeRequest is the body of POST /analytics/analysis
type AnalyzeRequest struct {
	Holdings []domain.Holding `json:"holdings"`
}

// HandleAnalyzePortfolio handles GET /api/v1/analytics/portfolios/{id}/analysis
func (h *Handler) HandleAnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return
	}

	snapshot, err := h.service.AnalyzePortfolioByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Failed to analyze portfolio")
		return
	}

	h.writeData(w, http.StatusOK, snapshot)
}

// HandleAnalyzeHoldings handles POST /api/v1/analytics/analysis
func (h *Handler) HandleAnalyzeHoldings(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snapshot, err := h.service.AnalyzePortfolio(r.Context(), req.Holdings)
	if err != nil {
		h.handleServiceError(w, err, "Failed to analyze holdings")
		return
	}

	h.writeData(w, http.StatusOK, snapshot)
}

// HandleGetStockRecommendation handles GET /api/v1/analytics/stocks/{symbol}/recommendation.
// A symbol without a stored recommendation gets one generated on the spot.
func (h *Handler) HandleGetStockRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := universe.NormalizeSymbol(chi.URLParam(r, "symbol"))

	rec, err := h.recommendations.GetBySymbol(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get recommendation")
		h.writeError(w, http.StatusInternalServerError, "Failed to get recommendation")
		return
	}
	if rec == nil {
		h.log.Debug().Str("symbol", symbol).Msg("No stored recommendation, generating")
		rec, err = h.service.GenerateStockRecommendation(r.Context(), symbol)
		if err != nil {
			h.handleServiceError(w, err, "Failed to generate recommendation")
			return
		}
	}

	h.writeData(w, http.StatusOK, rec)
}

// HandleGenerateStockRecommendation handles POST /api/v1/analytics/stocks/{symbol}/recommendation
func (h *Handler) HandleGenerateStockRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	rec, err := h.service.GenerateStockRecommendation(r.Context(), symbol)
	if err != nil {
		h.handleServiceError(w, err, "Failed to generate recommendation")
		return
	}

	h.writeData(w, http.StatusOK, rec)
}

// HandleListRecommendations handles GET /api/v1/analytics/recommendations
func (h *Handler) HandleListRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recommendations.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list recommendations")
		h.writeError(w, http.StatusInternalServerError, "Failed to list recommendations")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// HandleRecommendPortfolio handles GET /api/v1/analytics/recommendations/portfolio
func (h *Handler) HandleRecommendPortfolio(w http.ResponseWriter, r *http.Request) {
	strategy := h.defaultStrategy
	if s := r.URL.Query().Get("strategy"); s != "" {
		parsed, err := optimization.ParseStrategy(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = parsed
	}

	rec, err := h.service.RecommendUniverse(r.Context(), strategy)
	if err != nil {
		h.handleServiceError(w, err, "Failed to recommend portfolio")
		return
	}

	h.writeData(w, http.StatusOK, rec)
}

// handleServiceError maps the error taxonomy onto HTTP status codes
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSymbolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientHistory), errors.Is(err, domain.ErrNoUsableData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSymbolUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	} else {
		h.log.Warn().Err(err).Int("status", status).Msg(msg)
	}

	h.writeError(w, status, msg+": "+err.Error())
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
