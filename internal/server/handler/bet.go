package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// ImmediateSyncer runs the post-write refresh for one market.
type ImmediateSyncer interface {
	SyncAfterBet(ctx context.Context, marketRef string) domain.ImmediateSyncOutcome
}

// BetHandler serves bet endpoints, including the post-placement refresh.
type BetHandler struct {
	bets   domain.ExtendedBetStore
	users  domain.UserStore
	syncer ImmediateSyncer
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler. syncer may be nil in server-only
// deployments; bet placement then relies on the external sync process.
func NewBetHandler(bets domain.ExtendedBetStore, users domain.UserStore, syncer ImmediateSyncer, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		users:  users,
		syncer: syncer,
		logger: logger,
	}
}

// betView is the JSON shape bets are served as.
type betView struct {
	ID              string    `json:"id"`
	BlockchainBetID int64     `json:"blockchain_bet_id"`
	UserID          string    `json:"user_id"`
	MarketID        string    `json:"market_id"`
	Position        bool      `json:"position"`
	Amount          int64     `json:"amount"`
	Odds            float64   `json:"odds"`
	Status          string    `json:"status"`
	Payout          int64     `json:"payout"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBetView(b domain.ExtendedBet) betView {
	return betView{
		ID:              b.ID,
		BlockchainBetID: b.BlockchainBetID,
		UserID:          b.UserID,
		MarketID:        b.MarketID,
		Position:        b.Position,
		Amount:          b.Amount,
		Odds:            b.Odds,
		Status:          string(b.Status),
		Payout:          b.Payout,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// placeBetRequest announces that a bet transaction landed on-chain for the
// given market and asks for an immediate serving-side refresh.
type placeBetRequest struct {
	MarketRef string `json:"market_ref"`
	UserAddr  string `json:"user_addr"`
}

// NotifyBetPlaced triggers the immediate post-write refresh for a market.
// The response reports per-step degradation; the request itself only fails
// on bad input.
// POST /api/bets/notify
func (h *BetHandler) NotifyBetPlaced(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketRef == "" {
		writeError(w, http.StatusBadRequest, "market_ref is required")
		return
	}
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is handled by an external process")
		return
	}

	if req.UserAddr != "" {
		if _, err := h.users.GetOrCreate(r.Context(), req.UserAddr); err != nil {
			h.logger.WarnContext(r.Context(), "handler: ensure user failed",
				slog.String("user_addr", req.UserAddr),
				slog.String("error", err.Error()),
			)
		}
	}

	out := h.syncer.SyncAfterBet(r.Context(), req.MarketRef)

	resp := map[string]any{
		"market_ref":   out.MarketRef,
		"bets_synced":  out.BetsSynced,
		"degraded":     out.Degraded(),
		"completed_at": out.CompletedAt.UTC().Format(time.RFC3339),
	}
	if out.Degraded() {
		steps := map[string]string{}
		for name, stepErr := range map[string]error{
			"sync":    out.SyncErr,
			"stats":   out.StatsErr,
			"yield":   out.YieldErr,
			"webhook": out.WebhookErr,
		} {
			if stepErr != nil {
				steps[name] = stepErr.Error()
			}
		}
		resp["errors"] = steps
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUserBets returns the bets of one user, by user id or address.
// GET /api/users/{id}/bets
func (h *BetHandler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	userID := ref
	if u, err := h.users.GetByAddress(r.Context(), ref); err == nil {
		userID = u.ID
	} else if !errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	bets, err := h.bets.ListByUser(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list user bets failed",
			slog.String("user_id", userID),
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
