package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/analysis", h.HandleAnalyzeHoldings)
		r.Get("/portfolios/{id}/analysis", h.HandleAnalyzePortfolio)

		r.Get("/stocks/{symbol}/recommendation", h.HandleGetStockRecommendation)
		r.Post("/stocks/{symbol}/recommendation", h.HandleGenerateStockRecommendation)

		r.Get("/recommendations", h.HandleListRecommendations)
		r.Get("/recommendations/portfolio", h.HandleRecommendPortfolio)
	})
}
