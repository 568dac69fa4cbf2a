package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yieldbet/marketd/internal/domain"
)

func ledgerMarket(id, txVersion int64) domain.MarketRecord {
	return domain.MarketRecord{
		MarketID:           id,
		Question:           "q",
		EndTime:            time.Now().Add(24 * time.Hour),
		TransactionVersion: txVersion,
		InsertedAt:         time.Now(),
	}
}

func ledgerBet(betID, marketID, txVersion int64, addr string, position bool, amount int64) domain.BetRecord {
	return domain.BetRecord{
		BetID:              betID,
		MarketID:           marketID,
		UserAddr:           addr,
		Position:           position,
		Amount:             amount,
		TransactionVersion: txVersion,
		InsertedAt:         time.Now(),
	}
}

func TestSyncMarketsMaterializesOnce(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10), ledgerMarket(2, 20)}
	r := newTestReconciler(m)

	res, err := r.SyncMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Processed)
	assert.Equal(t, int64(2), res.Created)
	assert.Zero(t, res.Errors)

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketActive, mk.Status)
	assert.Equal(t, domain.DefaultProbability, mk.Probability)

	// A second pass sees nothing unsynced.
	res, err = r.SyncMarkets(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestSyncBetsSkipsUnsyncedMarketThenHeals(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(7, 10)}
	m.ledgerBets = []domain.BetRecord{ledgerBet(100, 7, 11, "0xABCDEF", true, 300)}
	r := newTestReconciler(m)

	// Bets first: the market is not materialized yet, so the bet is skipped
	// without error and no user is created.
	res, err := r.SyncBets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Processed)
	assert.Equal(t, int64(1), res.Skipped)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Errors)
	assert.Empty(t, m.users)

	_, err = r.SyncMarkets(context.Background())
	require.NoError(t, err)

	// The next pass heals the gap.
	res, err = r.SyncBets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Created)

	bet, err := betStoreView{m}.GetByBlockchainID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, domain.BetActive, bet.Status)
	assert.Equal(t, domain.PlaceholderOdds, bet.Odds)

	// The user was created lazily with a normalized address.
	u, err := userStoreView{m}.GetByAddress(context.Background(), "0xabcdef")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", u.Address)
	assert.Equal(t, bet.UserID, u.ID)

	pending, err := m.PendingBetCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestSyncBetsCountsMarketLookupFailure(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(7, 10)}
	m.ledgerBets = []domain.BetRecord{ledgerBet(100, 7, 11, "0xa", true, 300)}
	r := newTestReconciler(m)
	_, err := r.SyncMarkets(context.Background())
	require.NoError(t, err)

	// A failing lookup is a store error, not a referential gap: it counts as
	// an error and is never reported as skipped.
	m.failMarketLookup = true
	res, err := r.SyncBets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Processed)
	assert.Equal(t, int64(1), res.Errors)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Created)
	assert.Empty(t, m.users)

	// Once the store recovers the same pass succeeds.
	m.failMarketLookup = false
	res, err = r.SyncBets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Created)
	assert.Zero(t, res.Errors)
}

func TestUpdateMarketStats(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10), ledgerMarket(2, 20)}
	m.ledgerBets = []domain.BetRecord{
		ledgerBet(100, 1, 11, "0xa", true, 300),
		ledgerBet(101, 1, 12, "0xb", false, 100),
	}
	r := newTestReconciler(m)
	summary := r.RunFullSync(context.Background())
	require.Zero(t, summary.TotalErrors)

	mk, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), mk.YesPoolSize)
	assert.Equal(t, int64(100), mk.NoPoolSize)
	assert.Equal(t, int64(400), mk.TotalPoolSize)
	assert.Equal(t, 1, mk.CountYes)
	assert.Equal(t, 1, mk.CountNo)
	assert.Equal(t, 75, mk.Probability)

	// A market with no bets keeps the neutral probability.
	empty, err := marketStoreView{m}.GetByBlockchainID(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPoolSize)
	assert.Equal(t, domain.DefaultProbability, empty.Probability)
}

func TestRunFullSyncAggregates(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	m.ledgerBets = []domain.BetRecord{ledgerBet(100, 1, 11, "0xa", true, 50)}
	r := newTestReconciler(m)

	summary := r.RunFullSync(context.Background())

	require.Len(t, summary.Results, 3)
	assert.Equal(t, "markets", summary.Results[0].Step)
	assert.Equal(t, "bets", summary.Results[1].Step)
	assert.Equal(t, "market_stats", summary.Results[2].Step)
	// 1 market + 1 bet + 1 stats row touched.
	assert.Equal(t, int64(3), summary.TotalProcessed)
	assert.Zero(t, summary.TotalErrors)
	assert.GreaterOrEqual(t, summary.DurationMs, int64(0))
}

func TestRunFullSyncContinuesPastFailedStep(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 10)}
	m.failUpdateStat = true
	r := newTestReconciler(m)

	summary := r.RunFullSync(context.Background())

	require.Len(t, summary.Results, 3)
	assert.Equal(t, int64(1), summary.TotalErrors)
	// The markets step still ran.
	assert.Equal(t, int64(1), summary.Results[0].Created)
}

func TestSyncBetsBatchLimit(t *testing.T) {
	m := newMemStore()
	m.ledgerMarkets = []domain.MarketRecord{ledgerMarket(1, 1)}
	for i := int64(0); i < 5; i++ {
		m.ledgerBets = append(m.ledgerBets, ledgerBet(100+i, 1, 10+i, "0xa", true, 10))
	}
	r := NewReconciler(m, marketStoreView{m}, betStoreView{m}, userStoreView{m}, 100, 2, discardLogger())

	_, err := r.SyncMarkets(context.Background())
	require.NoError(t, err)

	res, err := r.SyncBets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Processed)

	// Newest transaction versions first.
	_, err = betStoreView{m}.GetByBlockchainID(context.Background(), 104)
	assert.NoError(t, err)
	_, err = betStoreView{m}.GetByBlockchainID(context.Background(), 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
