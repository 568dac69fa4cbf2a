package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the Postgres stores, mirroring their
// semantics closely enough for reconciler and handler tests: anti-join
// unsynced queries, conflict-free idempotent creates, and set-based stats
// recomputation.
type memStore struct {
	mu sync.Mutex

	ledgerMarkets []domain.MarketRecord
	ledgerBets    []domain.BetRecord

	markets map[string]*domain.ExtendedMarket // by serving id
	bets    map[string]*domain.ExtendedBet
	users   map[string]*domain.User // by normalized address

	auditLog []domain.EventLogEntry

	nextID int

	// Failure injection.
	failSetYield     bool
	failUpdateStat   bool
	failMarketLookup bool
}

func newMemStore() *memStore {
	return &memStore{
		markets: make(map[string]*domain.ExtendedMarket),
		bets:    make(map[string]*domain.ExtendedBet),
		users:   make(map[string]*domain.User),
	}
}

func (m *memStore) genID() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) marketByChainLocked(id int64) *domain.ExtendedMarket {
	for _, mk := range m.markets {
		if mk.BlockchainMarketID != nil && *mk.BlockchainMarketID == id {
			return mk
		}
	}
	return nil
}

func (m *memStore) betByChainLocked(id int64) *domain.ExtendedBet {
	for _, b := range m.bets {
		if b.BlockchainBetID == id {
			return b
		}
	}
	return nil
}

// --- domain.LedgerStore ---

func (m *memStore) UnsyncedMarkets(_ context.Context, limit int) ([]domain.MarketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.MarketRecord
	for _, rec := range m.ledgerMarkets {
		if m.marketByChainLocked(rec.MarketID) == nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionVersion > out[j].TransactionVersion })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UnsyncedBets(_ context.Context, limit int) ([]domain.BetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BetRecord
	for _, rec := range m.ledgerBets {
		if m.betByChainLocked(rec.BetID) == nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionVersion > out[j].TransactionVersion })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PendingBetCount(ctx context.Context) (int64, error) {
	recs, err := m.UnsyncedBets(ctx, math.MaxInt32)
	return int64(len(recs)), err
}

// --- domain.ExtendedMarketStore ---

func (m *memStore) CreateFromLedger(_ context.Context, rec domain.MarketRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.marketByChainLocked(rec.MarketID) != nil {
		return false, nil
	}
	chainID := rec.MarketID
	end := rec.EndTime
	mk := &domain.ExtendedMarket{
		ID:                 m.genID(),
		BlockchainMarketID: &chainID,
		Question:           rec.Question,
		Status:             domain.MarketActive,
		Probability:        domain.DefaultProbability,
		EndDate:            &end,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	m.markets[mk.ID] = mk
	return true, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.ExtendedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk, ok := m.markets[id]; ok {
		return *mk, nil
	}
	return domain.ExtendedMarket{}, domain.ErrNotFound
}

func (m *memStore) GetByBlockchainID(_ context.Context, id int64) (domain.ExtendedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarketLookup {
		return domain.ExtendedMarket{}, fmt.Errorf("postgres: get market by blockchain id: injected")
	}
	if mk := m.marketByChainLocked(id); mk != nil {
		return *mk, nil
	}
	return domain.ExtendedMarket{}, domain.ErrNotFound
}

func (m *memStore) GetByRef(ctx context.Context, ref string) (domain.ExtendedMarket, error) {
	if mk, err := m.GetByID(ctx, ref); err == nil {
		return mk, nil
	}
	var chainID int64
	if _, err := fmt.Sscanf(ref, "%d", &chainID); err != nil {
		return domain.ExtendedMarket{}, domain.ErrNotFound
	}
	return m.GetByBlockchainID(ctx, chainID)
}

func (m *memStore) List(_ context.Context, _ domain.ListOpts) ([]domain.ExtendedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExtendedMarket
	for _, mk := range m.markets {
		out = append(out, *mk)
	}
	return out, nil
}

func (m *memStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.ExtendedMarket, error) {
	all, _ := m.List(ctx, opts)
	var out []domain.ExtendedMarket
	for _, mk := range all {
		if mk.Status == domain.MarketActive {
			out = append(out, mk)
		}
	}
	return out, nil
}

func (m *memStore) updateStatsLocked(mk *domain.ExtendedMarket) {
	var yesPool, noPool int64
	var yesCount, noCount int
	for _, b := range m.bets {
		if b.MarketID != mk.ID || b.Status != domain.BetActive {
			continue
		}
		if b.Position {
			yesPool += b.Amount
			yesCount++
		} else {
			noPool += b.Amount
			noCount++
		}
	}
	mk.YesPoolSize = yesPool
	mk.NoPoolSize = noPool
	mk.TotalPoolSize = yesPool + noPool
	mk.CountYes = yesCount
	mk.CountNo = noCount
	if mk.TotalPoolSize > 0 {
		mk.Probability = int(math.Round(float64(yesPool) / float64(mk.TotalPoolSize) * 100))
	} else {
		mk.Probability = domain.DefaultProbability
	}
	mk.UpdatedAt = time.Now()
}

func (m *memStore) UpdateStats(_ context.Context) (domain.MarketStatsUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateStat {
		return domain.MarketStatsUpdate{}, fmt.Errorf("postgres: update market stats: injected")
	}
	for _, mk := range m.markets {
		m.updateStatsLocked(mk)
	}
	return domain.MarketStatsUpdate{MarketsUpdated: int64(len(m.markets))}, nil
}

func (m *memStore) UpdateStatsFor(_ context.Context, chainID int64) (domain.MarketStatsUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateStat {
		return domain.MarketStatsUpdate{}, fmt.Errorf("postgres: update market stats: injected")
	}
	mk := m.marketByChainLocked(chainID)
	if mk == nil {
		return domain.MarketStatsUpdate{}, nil
	}
	m.updateStatsLocked(mk)
	return domain.MarketStatsUpdate{MarketsUpdated: 1}, nil
}

func (m *memStore) MarkResolved(_ context.Context, chainID int64, outcome bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := m.marketByChainLocked(chainID)
	if mk == nil {
		return domain.ErrNotFound
	}
	mk.Status = domain.MarketResolved
	mk.Outcome = &outcome
	if mk.ResolutionDate == nil {
		now := time.Now()
		mk.ResolutionDate = &now
	}
	return nil
}

func (m *memStore) AddYieldEarned(_ context.Context, chainID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := m.marketByChainLocked(chainID)
	if mk == nil {
		return domain.ErrNotFound
	}
	mk.TotalYieldEarned += amount
	return nil
}

func (m *memStore) SetCurrentYield(_ context.Context, id string, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetYield {
		return fmt.Errorf("postgres: set current yield: injected")
	}
	mk, ok := m.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	mk.CurrentYield = y
	return nil
}

func (m *memStore) ActiveWithPool(ctx context.Context, limit int) ([]domain.ExtendedMarket, error) {
	active, _ := m.ListActive(ctx, domain.ListOpts{})
	var out []domain.ExtendedMarket
	for _, mk := range active {
		if mk.TotalPoolSize > 0 {
			out = append(out, mk)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LastUpdatedAt(_ context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, mk := range m.markets {
		t := mk.UpdatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// marketStoreView exposes only the ExtendedMarketStore face of memStore so a
// single struct can back multiple store interfaces without method clashes.
type marketStoreView struct{ *memStore }

var _ domain.LedgerStore = (*memStore)(nil)
var _ domain.ExtendedMarketStore = marketStoreView{}

// --- domain.ExtendedBetStore (separate view: CreateFromLedger clashes) ---

type betStoreView struct{ *memStore }

var _ domain.ExtendedBetStore = betStoreView{}

func (v betStoreView) CreateFromLedger(_ context.Context, rec domain.BetRecord, userID, marketID string) (bool, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.betByChainLocked(rec.BetID) != nil {
		return false, nil
	}
	b := &domain.ExtendedBet{
		ID:              m.genID(),
		BlockchainBetID: rec.BetID,
		UserID:          userID,
		MarketID:        marketID,
		Position:        rec.Position,
		Amount:          rec.Amount,
		Odds:            domain.PlaceholderOdds,
		Status:          domain.BetActive,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.bets[b.ID] = b
	return true, nil
}

func (v betStoreView) GetByBlockchainID(_ context.Context, id int64) (domain.ExtendedBet, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.betByChainLocked(id); b != nil {
		return *b, nil
	}
	return domain.ExtendedBet{}, domain.ErrNotFound
}

func (v betStoreView) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.ExtendedBet, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExtendedBet
	for _, b := range m.bets {
		if b.MarketID == marketID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (v betStoreView) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.ExtendedBet, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExtendedBet
	for _, b := range m.bets {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (v betStoreView) SettleForResolution(_ context.Context, chainID int64, outcome bool) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := m.marketByChainLocked(chainID)
	if mk == nil {
		return nil
	}
	for _, b := range m.bets {
		if b.MarketID != mk.ID || b.Status != domain.BetActive {
			continue
		}
		if b.Position == outcome {
			b.Status = domain.BetWon
		} else {
			b.Status = domain.BetLost
		}
	}
	return nil
}

func (v betStoreView) MarkClaimed(_ context.Context, chainID int64, payout int64) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.betByChainLocked(chainID)
	if b == nil {
		return domain.ErrNotFound
	}
	b.Status = domain.BetClaimed
	b.Payout = payout
	return nil
}

func (v betStoreView) LastUpdatedAt(_ context.Context) (*time.Time, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, b := range m.bets {
		t := b.UpdatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// --- domain.UserStore ---

type userStoreView struct{ *memStore }

var _ domain.UserStore = userStoreView{}

func (v userStoreView) GetOrCreate(_ context.Context, address string) (domain.User, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := domain.NormalizeAddress(address)
	if u, ok := m.users[addr]; ok {
		return *u, nil
	}
	u := &domain.User{ID: m.genID(), Address: addr, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.users[addr] = u
	return *u, nil
}

func (v userStoreView) GetByAddress(_ context.Context, address string) (domain.User, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[domain.NormalizeAddress(address)]; ok {
		return *u, nil
	}
	return domain.User{}, domain.ErrNotFound
}

// --- domain.EventLogStore ---

type auditView struct{ *memStore }

var _ domain.EventLogStore = auditView{}

func (v auditView) Append(_ context.Context, entry domain.EventLogEntry) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.auditLog) + 1)
	entry.CreatedAt = time.Now()
	m.auditLog = append(m.auditLog, entry)
	return nil
}

func (v auditView) Stats(_ context.Context) ([]domain.EventStats, error) {
	return nil, nil
}

func (v auditView) ExportBefore(_ context.Context, cutoff time.Time, fn func(domain.EventLogEntry) error) (int64, error) {
	m := v.memStore
	m.mu.Lock()
	entries := append([]domain.EventLogEntry(nil), m.auditLog...)
	m.mu.Unlock()

	var n int64
	for _, e := range entries {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if err := fn(e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (v auditView) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.EventLogEntry
	var deleted int64
	for _, e := range m.auditLog {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.auditLog = kept
	return deleted, nil
}

// newTestReconciler wires a Reconciler over one memStore with small batches.
func newTestReconciler(m *memStore) *Reconciler {
	return NewReconciler(m, marketStoreView{m}, betStoreView{m}, userStoreView{m}, 100, 500, discardLogger())
}
