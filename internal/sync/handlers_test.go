package sync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yieldbet/marketd/internal/domain"
)

type recordingBus struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{payloads: make(map[string][][]byte)}
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads[channel] = append(b.payloads[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func newTestHandler(m *memStore, bus domain.SignalBus) *EventHandler {
	r := newTestReconciler(m)
	return NewEventHandler(r, marketStoreView{m}, betStoreView{m}, nil, bus, discardLogger())
}

func TestHandleBetEventRefreshesStats(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	m.ledgerBets = []domain.BetRecord{ledgerBet(100, 1, 11, "0xa", true, 300)}
	r := newTestReconciler(m)
	_, err := r.SyncMarkets(context.Background())
	require.NoError(t, err)

	bus := newRecordingBus()
	h := newTestHandler(m, bus)

	ev, err := domain.DecodeNotification(domain.ChannelBet,
		[]byte(`{"bet_id":100,"market_id":1,"user_addr":"0xa","position":true,"amount":300,"transaction_version":11}`))
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), ev))

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), mk.YesPoolSize)
	assert.Equal(t, 100, mk.Probability)

	assert.Len(t, bus.payloads[BusMarketUpdates], 1)
	assert.Contains(t, string(bus.payloads[BusMarketUpdates][0]), "bet_placed")
}

func TestHandleResolutionSettlesBets(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	m.ledgerBets = []domain.BetRecord{
		ledgerBet(100, 1, 11, "0xa", true, 300),
		ledgerBet(101, 1, 12, "0xb", false, 100),
	}
	r := newTestReconciler(m)
	r.RunFullSync(context.Background())

	h := newTestHandler(m, nil)
	ev := domain.MarketResolutionEvent{MarketID: 1, Outcome: true, TransactionVersion: 13}
	require.NoError(t, h.Handle(context.Background(), ev))

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketResolved, mk.Status)
	require.NotNil(t, mk.Outcome)
	assert.True(t, *mk.Outcome)

	yes, err := betStoreView{m}.GetByBlockchainID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWon, yes.Status)

	no, err := betStoreView{m}.GetByBlockchainID(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, domain.BetLost, no.Status)

	// Replaying the same resolution converges to the same state.
	require.NoError(t, h.Handle(context.Background(), ev))
	yes, _ = betStoreView{m}.GetByBlockchainID(context.Background(), 100)
	assert.Equal(t, domain.BetWon, yes.Status)
}

func TestHandleResolutionForUnknownMarketIsDeferred(t *testing.T) {
	m := newMemStore()
	h := newTestHandler(m, nil)

	ev := domain.MarketResolutionEvent{MarketID: 99, Outcome: false, TransactionVersion: 5}
	assert.NoError(t, h.Handle(context.Background(), ev))
}

func TestHandleClaimRecordsPayout(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	m.ledgerBets = []domain.BetRecord{ledgerBet(100, 1, 11, "0xa", true, 300)}
	r := newTestReconciler(m)
	r.RunFullSync(context.Background())
	require.NoError(t, betStoreView{m}.SettleForResolution(context.Background(), 1, true))

	h := newTestHandler(m, nil)
	ev := domain.WinningsClaimEvent{BetID: 100, UserAddr: "0xa", WinningAmount: 450, YieldShare: 50, TransactionVersion: 14}
	require.NoError(t, h.Handle(context.Background(), ev))

	b, err := betStoreView{m}.GetByBlockchainID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, domain.BetClaimed, b.Status)
	assert.Equal(t, int64(500), b.Payout)
}

func TestHandleClaimForUnknownBet(t *testing.T) {
	m := newMemStore()
	h := newTestHandler(m, nil)

	ev := domain.WinningsClaimEvent{BetID: 404, WinningAmount: 1, TransactionVersion: 1}
	assert.NoError(t, h.Handle(context.Background(), ev))
}

func TestHandleYieldDeposit(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	r := newTestReconciler(m)
	_, err := r.SyncMarkets(context.Background())
	require.NoError(t, err)

	bus := newRecordingBus()
	h := newTestHandler(m, bus)

	ev := domain.YieldDepositEvent{MarketID: 1, Amount: 1000, ProtocolAddr: "0xproto", TransactionVersion: 15}
	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), mk.TotalYieldEarned)
	assert.Len(t, bus.payloads[BusSyncEvents], 2)
}

func TestHandleMarketEventWithResolvedFlag(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	h := newTestHandler(m, nil)

	// SyncMarkets inside the handler materializes the market, then the
	// resolved flag settles it.
	ev, err := domain.DecodeNotification(domain.ChannelMarket,
		[]byte(`{"market_id":1,"question":"q","resolved":true,"outcome":false,"transaction_version":16}`))
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), ev))

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketResolved, mk.Status)
}

// The push and pull paths must converge on the same serving state from the
// same ledger content: a periodic pass over the whole ledger and a
// notification per ledger row are interchangeable.
func TestPushAndPullPathsConverge(t *testing.T) {
	ctx := context.Background()
	ledgerMarkets := []domain.MarketRecord{ledgerMarket(1, 10), ledgerMarket(2, 20)}
	ledgerBets := []domain.BetRecord{
		ledgerBet(100, 1, 11, "0xa", true, 300),
		ledgerBet(101, 1, 12, "0xb", false, 100),
		ledgerBet(102, 2, 13, "0xc", true, 50),
	}

	// Pull only: one full reconciliation pass.
	pull := newMemStore()
	pull.ledgerMarkets = ledgerMarkets
	pull.ledgerBets = ledgerBets
	summary := newTestReconciler(pull).RunFullSync(ctx)
	require.Zero(t, summary.TotalErrors)

	// Push only: one notification per ledger row, no scheduled pass.
	push := newMemStore()
	push.ledgerMarkets = ledgerMarkets
	push.ledgerBets = ledgerBets
	h := newTestHandler(push, nil)
	for _, rec := range ledgerMarkets {
		require.NoError(t, h.Handle(ctx, domain.MarketEvent{
			MarketID:           rec.MarketID,
			Question:           rec.Question,
			TransactionVersion: rec.TransactionVersion,
		}))
	}
	for _, rec := range ledgerBets {
		require.NoError(t, h.Handle(ctx, domain.BetEvent{
			BetID:              rec.BetID,
			MarketID:           rec.MarketID,
			UserAddr:           rec.UserAddr,
			Position:           rec.Position,
			Amount:             rec.Amount,
			TransactionVersion: rec.TransactionVersion,
		}))
	}

	for _, rec := range ledgerMarkets {
		a, err := marketStoreView{pull}.GetByBlockchainID(ctx, rec.MarketID)
		require.NoError(t, err)
		b, err := marketStoreView{push}.GetByBlockchainID(ctx, rec.MarketID)
		require.NoError(t, err)

		assert.Equal(t, a.Status, b.Status)
		assert.Equal(t, a.YesPoolSize, b.YesPoolSize)
		assert.Equal(t, a.NoPoolSize, b.NoPoolSize)
		assert.Equal(t, a.TotalPoolSize, b.TotalPoolSize)
		assert.Equal(t, a.CountYes, b.CountYes)
		assert.Equal(t, a.CountNo, b.CountNo)
		assert.Equal(t, a.Probability, b.Probability)
	}
	for _, rec := range ledgerBets {
		a, err := betStoreView{pull}.GetByBlockchainID(ctx, rec.BetID)
		require.NoError(t, err)
		b, err := betStoreView{push}.GetByBlockchainID(ctx, rec.BetID)
		require.NoError(t, err)

		assert.Equal(t, a.Status, b.Status)
		assert.Equal(t, a.Position, b.Position)
		assert.Equal(t, a.Amount, b.Amount)
	}

	pendingPull, err := pull.PendingBetCount(ctx)
	require.NoError(t, err)
	pendingPush, err := push.PendingBetCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pendingPull)
	assert.Zero(t, pendingPush)
}
