package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// MarketHandler serves market read endpoints, fronted by the optional market
// cache.
type MarketHandler struct {
	markets domain.ExtendedMarketStore
	bets    domain.ExtendedBetStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. cache may be nil.
func NewMarketHandler(markets domain.ExtendedMarketStore, bets domain.ExtendedBetStore, cache domain.MarketCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		bets:    bets,
		cache:   cache,
		logger:  logger,
	}
}

// marketView is the JSON shape markets are served as.
type marketView struct {
	ID                 string     `json:"id"`
	BlockchainMarketID *int64     `json:"blockchain_market_id,omitempty"`
	Question           string     `json:"question"`
	Status             string     `json:"status"`
	Probability        int        `json:"probability"`
	YesPoolSize        int64      `json:"yes_pool_size"`
	NoPoolSize         int64      `json:"no_pool_size"`
	TotalPoolSize      int64      `json:"total_pool_size"`
	CountYes           int        `json:"count_yes"`
	CountNo            int        `json:"count_no"`
	CurrentYield       float64    `json:"current_yield"`
	TotalYieldEarned   int64      `json:"total_yield_earned"`
	Outcome            *bool      `json:"outcome,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	ResolutionDate     *time.Time `json:"resolution_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toMarketView(m domain.ExtendedMarket) marketView {
	return marketView{
		ID:                 m.ID,
		BlockchainMarketID: m.BlockchainMarketID,
		Question:           m.Question,
		Status:             string(m.Status),
		Probability:        m.Probability,
		YesPoolSize:        m.YesPoolSize,
		NoPoolSize:         m.NoPoolSize,
		TotalPoolSize:      m.TotalPoolSize,
		CountYes:           m.CountYes,
		CountNo:            m.CountNo,
		CurrentYield:       m.CurrentYield,
		TotalYieldEarned:   m.TotalYieldEarned,
		Outcome:            m.Outcome,
		EndDate:            m.EndDate,
		ResolutionDate:     m.ResolutionDate,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// ListMarkets returns markets with pagination. ?status=active narrows to
// active markets.
// GET /api/markets?status=active&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		markets []domain.ExtendedMarket
		err     error
	)
	if r.URL.Query().Get("status") == "active" {
		markets, err = h.markets.ListActive(r.Context(), opts)
	} else {
		markets, err = h.markets.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, toMarketView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": views,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetMarket returns one market by serving id or blockchain market id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	if h.cache != nil {
		if m, err := h.cache.Get(r.Context(), ref); err == nil {
			writeJSON(w, http.StatusOK, toMarketView(m))
			return
		}
	}

	m, err := h.markets.GetByRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), m); err != nil {
			h.logger.WarnContext(r.Context(), "handler: cache set failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	writeJSON(w, http.StatusOK, toMarketView(m))
}

// ListMarketBets returns the bets of one market.
// GET /api/markets/{id}/bets
func (h *MarketHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	m, err := h.markets.GetByRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	bets, err := h.bets.ListByMarket(r.Context(), m.ID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market bets failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": views})
}
