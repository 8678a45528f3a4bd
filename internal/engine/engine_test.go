package engine_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/adapters/storage"
	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/alejandrodnm/resolvebot/internal/engine"
	"github.com/alejandrodnm/resolvebot/internal/ports"
	"github.com/alejandrodnm/resolvebot/internal/scanner"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeSource struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	err        error
	panicOnce  bool
	calls      int
	lockedSeen map[string]bool
}

func (f *fakeSource) Scan(_ context.Context, locks ports.LockChecker) (scanner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOnce {
		f.panicOnce = false
		panic("boom")
	}
	f.lockedSeen = map[string]bool{}
	var out []domain.Candidate
	for _, c := range f.candidates {
		f.lockedSeen[c.EventID] = locks.IsLocked(c.EventID)
		out = append(out, c)
	}
	return scanner.Result{Candidates: out, Stats: scanner.Stats{Eligible: len(out)}}, f.err
}

type fakeMarkets struct {
	mu      sync.Mutex
	markets map[string]domain.Market
	errs    map[string]error
}

func (f *fakeMarkets) FetchMarketBySlug(_ context.Context, slug string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarkets) FetchMarketByID(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return domain.Market{}, err
	}
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarkets) set(m domain.Market) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets[m.ID] = m
}

type fakeBooks struct {
	books map[string]domain.OrderBook
	calls int
}

func (f *fakeBooks) FetchOrderBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	f.calls++
	b, ok := f.books[tokenID]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return b, nil
}

type memStore struct {
	mu        sync.Mutex
	saved     []*domain.State
	err       error
	failSaves int // saves que fallan antes de empezar a funcionar
}

func (m *memStore) Load(context.Context) (*domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, domain.ErrNoState
	}
	return m.saved[len(m.saved)-1].Clone(), nil
}

func (m *memStore) Save(_ context.Context, s *domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.failSaves > 0 {
		m.failSaves--
		return errors.New("database is locked")
	}
	m.saved = append(m.saved, s.Clone())
	return nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []domain.ClosedPosition
}

func (l *memLedger) Record(_ context.Context, c domain.ClosedPosition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, c)
	return nil
}

// --- helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	source  *fakeSource
	markets *fakeMarkets
	books   *fakeBooks
	store   *memStore
	ledger  *memLedger
	state   *domain.State
	engine  *engine.Engine
}

func newFixture(t *testing.T, cfg engine.Config, positions ...domain.Position) *fixture {
	t.Helper()
	f := &fixture{
		source:  &fakeSource{},
		markets: &fakeMarkets{markets: map[string]domain.Market{}},
		books:   &fakeBooks{books: map[string]domain.OrderBook{}},
		store:   &memStore{},
		ledger:  &memLedger{},
		state:   domain.NewState(dec("1000")),
	}
	for _, p := range positions {
		f.state.Open(p)
	}
	seq := 0
	f.engine = engine.New(cfg, f.state, f.source, f.markets, f.books, f.store, f.ledger,
		engine.WithClock(func() time.Time { return now }),
		engine.WithIDGenerator(func() string { seq++; return fmt.Sprintf("pos-%d", seq) }),
	)
	return f
}

func position(id, eventID string, side domain.Side) domain.Position {
	return domain.Position{
		ID:         id,
		EventID:    eventID,
		MarketID:   "m-" + id,
		Slug:       "slug-" + id,
		Side:       side,
		EntryProb:  0.90,
		EntryPrice: dec("0.9"),
		Size:       dec("100"),
		Cost:       dec("90"),
		TokenID:    "tok-" + id,
		OpenedAt:   now.Add(-time.Hour),
	}
}

func openMarket(id, yes string) domain.Market {
	return domain.Market{ID: id, EndDate: now.Add(time.Hour), OutcomePrices: [2]string{yes, ""}}
}

func resolvedMarket(id, yes, no string) domain.Market {
	return domain.Market{ID: id, Closed: true, EndDate: now.Add(-time.Hour), OutcomePrices: [2]string{yes, no}}
}

func candidate(eventID, slug string, ask, size float64) domain.Candidate {
	return domain.Candidate{
		EventID:     eventID,
		MarketID:    "m-" + slug,
		Slug:        slug,
		Side:        domain.SideYes,
		TokenID:     "tok-" + slug,
		Probability: ask,
		BestAsk:     ask,
		AskSize:     size,
	}
}

func testConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.StopProbDrop = 0.15
	return cfg
}

// --- tests ---

func TestRunCycle_OpensCandidate(t *testing.T) {
	f := newFixture(t, testConfig())
	f.source.candidates = []domain.Candidate{candidate("e1", "eth-above-4000", 0.90, 50)}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Opened, 1)

	p := rep.Opened[0]
	assert.Equal(t, "pos-1", p.ID)
	assert.Equal(t, "e1", p.EventID)
	assert.True(t, p.EntryPrice.Equal(dec("0.9")))
	assert.True(t, p.Size.Equal(dec("11.1111")), "size=%s", p.Size)
	assert.True(t, p.Cost.Equal(dec("9.99999")), "cost=%s", p.Cost)
	assert.Equal(t, now, p.OpenedAt)

	assert.True(t, rep.Saved)
	require.Len(t, f.store.saved, 1)
	saved := f.store.saved[0]
	assert.True(t, saved.Balance.Equal(dec("990.00001")))
	assert.Equal(t, 1, saved.Locks.Count("e1"))
	assert.Equal(t, []string{"tok-eth-above-4000"}, f.engine.OpenTokenIDs())
}

func TestRunCycle_SizeCappedAtAskSize(t *testing.T) {
	f := newFixture(t, testConfig())
	f.source.candidates = []domain.Candidate{candidate("e1", "thin-book", 0.80, 5)}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Opened, 1)
	assert.True(t, rep.Opened[0].Size.Equal(dec("5")))
	assert.True(t, rep.Opened[0].Cost.Equal(dec("4")))
}

func TestRunCycle_StopLoss(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
	f.markets.set(openMarket("m-p1", "0.60"))
	f.books.books["tok-p1"] = domain.OrderBook{
		TokenID: "tok-p1",
		Bids:    []domain.BookEntry{{Price: 0.50, Size: 10}, {Price: 0.55, Size: 40}},
		Asks:    []domain.BookEntry{{Price: 0.62, Size: 10}},
	}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Settled, 1)

	c := rep.Settled[0]
	assert.Equal(t, domain.ResolutionStopLoss, c.Resolution)
	assert.True(t, c.Payout.Equal(dec("55")), "payout=%s", c.Payout)
	assert.True(t, c.PnL.Equal(dec("-35")), "pnl=%s", c.PnL)
	assert.True(t, c.PnL.Equal(c.Payout.Sub(c.Cost)))

	st := f.engine.State()
	assert.Empty(t, st.Positions)
	require.Len(t, st.Closed, 1)
	assert.True(t, st.Balance.Equal(dec("965")), "balance=%s", st.Balance)
	assert.Len(t, f.ledger.entries, 1)
}

func TestRunCycle_StopLossNotTriggered(t *testing.T) {
	tests := []struct {
		name      string
		yes       string
		bids      []domain.BookEntry
		bookCalls int
	}{
		{name: "drop below threshold", yes: "0.80", bookCalls: 0},
		{name: "no bids", yes: "0.60", bids: nil, bookCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
			f.markets.set(openMarket("m-p1", tt.yes))
			f.books.books["tok-p1"] = domain.OrderBook{TokenID: "tok-p1", Bids: tt.bids}

			rep, err := f.engine.RunCycle(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rep.Settled)
			assert.Equal(t, tt.bookCalls, f.books.calls)
			assert.False(t, rep.Saved)
			assert.Len(t, f.engine.State().Positions, 1)
		})
	}
}

func TestRunCycle_StopLossOnNoSide(t *testing.T) {
	p := position("p1", "e1", domain.SideNo)
	f := newFixture(t, testConfig(), p)
	// YES sube a 0.4 → NO cae a 0.6.
	f.markets.set(openMarket("m-p1", "0.4"))
	f.books.books["tok-p1"] = domain.OrderBook{Bids: []domain.BookEntry{{Price: 0.58, Size: 100}}}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Settled, 1)
	assert.True(t, rep.Settled[0].Payout.Equal(dec("58")))
}

func TestRunCycle_Resolution(t *testing.T) {
	tests := []struct {
		name   string
		side   domain.Side
		prices [2]string
		res    domain.Resolution
		payout string
		pnl    string
	}{
		{"yes wins", domain.SideYes, [2]string{"1", "0"}, domain.ResolutionYes, "100", "10"},
		{"yes loses", domain.SideYes, [2]string{"0", "1"}, domain.ResolutionNo, "0", "-90"},
		{"no wins", domain.SideNo, [2]string{"0", "1"}, domain.ResolutionNo, "100", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), position("p1", "e1", tt.side))
			f.markets.set(resolvedMarket("m-p1", tt.prices[0], tt.prices[1]))

			rep, err := f.engine.RunCycle(context.Background())
			require.NoError(t, err)
			require.Len(t, rep.Settled, 1)

			c := rep.Settled[0]
			assert.Equal(t, tt.res, c.Resolution)
			assert.True(t, c.Payout.Equal(dec(tt.payout)), "payout=%s", c.Payout)
			assert.True(t, c.PnL.Equal(dec(tt.pnl)), "pnl=%s", c.PnL)
			assert.Zero(t, f.books.calls, "resolution does not need the book")
		})
	}
}

func TestRunCycle_ClosedButUnresolvedStaysOpen(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
	f.markets.set(resolvedMarket("m-p1", "0.5", "0.5"))

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Settled)
	assert.Len(t, f.engine.State().Positions, 1)
}

func TestRunCycle_FetchErrorDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, testConfig(),
		position("p1", "e1", domain.SideYes),
		position("p2", "e2", domain.SideYes),
	)
	f.markets.errs = map[string]error{"m-p1": errors.New("timeout")}
	f.markets.set(resolvedMarket("m-p2", "1", "0"))

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CheckErrors)
	require.Len(t, rep.Settled, 1)
	assert.Equal(t, "p2", rep.Settled[0].ID)

	st := f.engine.State()
	require.Len(t, st.Positions, 1)
	assert.Equal(t, "p1", st.Positions[0].ID)
}

func TestRunCycle_PerEventCap(t *testing.T) {
	f := newFixture(t, testConfig())
	f.source.candidates = []domain.Candidate{
		candidate("e1", "a", 0.90, 100),
		candidate("e1", "b", 0.90, 100),
		candidate("e1", "c", 0.90, 100),
		candidate("e2", "d", 0.90, 100),
	}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Opened, 3)
	assert.Equal(t, 1, rep.Skipped.Locked)
	assert.True(t, f.engine.IsLocked("e1"))
	assert.False(t, f.engine.IsLocked("e2"))

	// El siguiente ciclo ve el evento bloqueado y no abre nada más contra él.
	rep, err = f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, f.source.lockedSeen["e1"])
	for _, p := range rep.Opened {
		assert.NotEqual(t, "e1", p.EventID)
	}
	assert.Equal(t, 2, f.engine.State().Locks.Count("e1"))
}

func TestRunCycle_RefusesWhenBalanceShort(t *testing.T) {
	f := newFixture(t, testConfig())
	f.state.Balance = dec("5")
	f.source.candidates = []domain.Candidate{candidate("e1", "a", 0.90, 100)}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Opened)
	assert.Equal(t, 1, rep.Skipped.Balance)
	assert.True(t, f.engine.State().Balance.Equal(dec("5")))
	assert.False(t, rep.Saved)
}

func TestRunCycle_MaxOpenPositions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOpenPositions = 1
	f := newFixture(t, cfg)
	f.source.candidates = []domain.Candidate{
		candidate("e1", "a", 0.90, 100),
		candidate("e2", "b", 0.90, 100),
	}

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Opened, 1)
	assert.Equal(t, 1, rep.Skipped.MaxOpen)
}

func TestRunCycle_WalletConservation(t *testing.T) {
	f := newFixture(t, testConfig())
	f.source.candidates = []domain.Candidate{
		candidate("e1", "a", 0.90, 100),
		candidate("e2", "b", 0.85, 100),
		candidate("e3", "c", 0.81, 100),
	}
	_, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	f.source.candidates = nil

	// a gana, b pierde, c sale por stop-loss.
	f.markets.set(resolvedMarket("m-a", "1", "0"))
	f.markets.set(resolvedMarket("m-b", "0", "1"))
	f.markets.set(openMarket("m-c", "0.5"))
	f.books.books["tok-c"] = domain.OrderBook{Bids: []domain.BookEntry{{Price: 0.47, Size: 100}}}

	_, err = f.engine.RunCycle(context.Background())
	require.NoError(t, err)

	st := f.engine.State()
	require.Len(t, st.Closed, 3)
	assert.Empty(t, st.Positions)

	expected := dec("1000")
	for _, c := range st.Closed {
		expected = expected.Sub(c.Cost).Add(c.Payout)
		assert.True(t, c.PnL.Equal(c.Payout.Sub(c.Cost)))
	}
	assert.True(t, st.Balance.Equal(expected), "balance=%s expected=%s", st.Balance, expected)
	assert.True(t, st.Balance.Equal(dec("1000").Add(st.RealizedPnL())))
}

func TestRunCycle_NoMutationNoSave(t *testing.T) {
	f := newFixture(t, testConfig())

	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Saved)
	assert.Empty(t, f.store.saved)
}

func TestRunCycle_ScanErrorStillSavesSettlements(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
	f.markets.set(resolvedMarket("m-p1", "1", "0"))
	f.source.err = context.Canceled
	f.source.candidates = []domain.Candidate{candidate("e2", "x", 0.9, 100)}

	rep, err := f.engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rep.Settled, 1)
	assert.Empty(t, rep.Opened)
	assert.True(t, rep.Saved)
}

func TestRunCycle_SaveError(t *testing.T) {
	f := newFixture(t, testConfig())
	f.store.err = errors.New("disk full")
	f.source.candidates = []domain.Candidate{candidate("e1", "a", 0.90, 100)}

	_, err := f.engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestOnBookUpdate_StopLossThenCycleDoesNotDoubleSettle(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))

	f.engine.OnBookUpdate(context.Background(), domain.OrderBook{
		TokenID: "tok-p1",
		Bids:    []domain.BookEntry{{Price: 0.55, Size: 100}},
		Asks:    []domain.BookEntry{{Price: 0.65, Size: 100}},
	})

	st := f.engine.State()
	require.Len(t, st.Closed, 1)
	assert.Equal(t, domain.ResolutionStopLoss, st.Closed[0].Resolution)
	assert.True(t, st.Closed[0].Payout.Equal(dec("55")))
	require.Len(t, f.store.saved, 1, "push path persists immediately")

	// El ciclo siguiente ya no ve la posición.
	f.markets.set(resolvedMarket("m-p1", "1", "0"))
	rep, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Settled)
	assert.Len(t, f.ledger.entries, 1)
	assert.True(t, f.engine.State().Balance.Equal(dec("965")))
}

func TestOnBookUpdate_Ignored(t *testing.T) {
	tests := []struct {
		name string
		book domain.OrderBook
	}{
		{"other token", domain.OrderBook{TokenID: "tok-zzz", Bids: []domain.BookEntry{{Price: 0.1, Size: 1}}}},
		{"small drop", domain.OrderBook{TokenID: "tok-p1", Bids: []domain.BookEntry{{Price: 0.84, Size: 1}}, Asks: []domain.BookEntry{{Price: 0.86, Size: 1}}}},
		{"empty book", domain.OrderBook{TokenID: "tok-p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
			f.engine.OnBookUpdate(context.Background(), tt.book)
			assert.Len(t, f.engine.State().Positions, 1)
			assert.Empty(t, f.store.saved)
		})
	}
}

func TestConcurrentPushAndCycleSettleOnce(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
	f.markets.set(openMarket("m-p1", "0.5"))
	book := domain.OrderBook{TokenID: "tok-p1", Bids: []domain.BookEntry{{Price: 0.5, Size: 100}}}
	f.books.books["tok-p1"] = book

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			f.engine.OnBookUpdate(context.Background(), book)
		}
	}()
	_, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	wg.Wait()

	st := f.engine.State()
	assert.Len(t, st.Closed, 1)
	assert.Empty(t, st.Positions)
	assert.Len(t, f.ledger.entries, 1)
	assert.True(t, st.Balance.Equal(dec("960")))
}

func TestReleaseLocksOnClosePolicy(t *testing.T) {
	for _, release := range []bool{false, true} {
		t.Run(fmt.Sprintf("release=%v", release), func(t *testing.T) {
			cfg := testConfig()
			cfg.ReleaseLocksOnClose = release
			f := newFixture(t, cfg,
				position("p1", "e1", domain.SideYes),
				position("p2", "e1", domain.SideYes),
			)
			require.True(t, f.engine.IsLocked("e1"))

			f.markets.set(resolvedMarket("m-p1", "1", "0"))
			f.markets.set(resolvedMarket("m-p2", "1", "0"))
			_, err := f.engine.RunCycle(context.Background())
			require.NoError(t, err)

			assert.Equal(t, !release, f.engine.IsLocked("e1"))
		})
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes), position("p2", "e2", domain.SideNo))
	f.markets.set(resolvedMarket("m-p1", "1", "0"))
	_, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)

	snap := f.engine.Snapshot()
	assert.Equal(t, 1, snap.Positions)
	assert.Equal(t, 1, snap.ClosedPositions)
	assert.Equal(t, 2, snap.EventLocks)
	assert.True(t, snap.Balance.Equal(dec("920")))
	assert.True(t, snap.TotalValue.Equal(dec("1010")))
	assert.True(t, snap.RealizedPnL.Equal(dec("10")))
}

func TestLoadState(t *testing.T) {
	t.Run("no state starts fresh", func(t *testing.T) {
		st, err := engine.LoadState(context.Background(), &memStore{}, dec("1000"))
		require.NoError(t, err)
		assert.True(t, st.Balance.Equal(dec("1000")))
		assert.Empty(t, st.Positions)
		assert.NotNil(t, st.Locks)
	})

	t.Run("existing state", func(t *testing.T) {
		store := &memStore{}
		prev := domain.NewState(dec("1000"))
		prev.Open(position("p1", "e1", domain.SideYes))
		require.NoError(t, store.Save(context.Background(), prev))

		st, err := engine.LoadState(context.Background(), store, dec("1"))
		require.NoError(t, err)
		assert.True(t, st.Balance.Equal(dec("910")))
		assert.Len(t, st.Positions, 1)
	})

	t.Run("corrupt state is fatal", func(t *testing.T) {
		_, err := engine.LoadState(context.Background(), errStore{errors.New("bad json")}, dec("1000"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNoState)
	})
}

type errStore struct{ err error }

func (s errStore) Load(context.Context) (*domain.State, error) { return nil, s.err }
func (s errStore) Save(context.Context, *domain.State) error  { return s.err }

func TestRun_RecoversFromPanic(t *testing.T) {
	f := newFixture(t, testConfig())
	f.source.panicOnce = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reports int
	err := f.engine.Run(ctx, 10*time.Millisecond, func(engine.CycleReport) {
		reports++
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reports)
	assert.GreaterOrEqual(t, f.source.calls, 2)
}

// cancelOnScan simula un SIGTERM que llega mientras el scan está en curso.
type cancelOnScan struct {
	cancel context.CancelFunc
}

func (c cancelOnScan) Scan(ctx context.Context, _ ports.LockChecker) (scanner.Result, error) {
	c.cancel()
	return scanner.Result{}, ctx.Err()
}

func TestRunCycle_ShutdownDuringScanPersistsSettlement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)

	state := domain.NewState(dec("1000"))
	state.Open(position("p1", "e1", domain.SideYes))
	require.NoError(t, store.Save(context.Background(), state))

	markets := &fakeMarkets{markets: map[string]domain.Market{}}
	markets.set(resolvedMarket("m-p1", "1", "0"))
	ledger := &memLedger{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := engine.New(testConfig(), state, cancelOnScan{cancel: cancel}, markets,
		&fakeBooks{books: map[string]domain.OrderBook{}}, store, ledger,
		engine.WithClock(func() time.Time { return now }),
	)

	rep, err := eng.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rep.Settled, 1)
	assert.True(t, rep.Saved)
	require.Len(t, ledger.entries, 1)
	require.NoError(t, store.Close())

	reopened, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := engine.LoadState(context.Background(), reopened, dec("1000"))
	require.NoError(t, err)
	assert.Empty(t, restored.Positions)
	require.Len(t, restored.Closed, 1)
	assert.Equal(t, domain.ResolutionYes, restored.Closed[0].Resolution)
	assert.True(t, restored.Balance.Equal(dec("1010")), "balance %s", restored.Balance)
}

func TestRun_FlushesPendingStateOnShutdown(t *testing.T) {
	f := newFixture(t, testConfig(), position("p1", "e1", domain.SideYes))
	f.markets.set(resolvedMarket("m-p1", "1", "0"))
	f.store.failSaves = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.engine = engine.New(testConfig(), f.state, cancelOnScan{cancel: cancel}, f.markets, f.books, f.store, f.ledger,
		engine.WithClock(func() time.Time { return now }),
	)

	err := f.engine.Run(ctx, time.Hour, nil)
	require.NoError(t, err)

	require.Len(t, f.store.saved, 1)
	last := f.store.saved[0]
	assert.Empty(t, last.Positions)
	assert.Len(t, last.Closed, 1)
	assert.True(t, last.Balance.Equal(dec("1010")))
}

func TestFlush_NothingPending(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.engine.Flush(context.Background()))
	assert.Empty(t, f.store.saved)
}
