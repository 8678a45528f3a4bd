package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePosition(id, eventID string, size, price string) domain.Position {
	s := decimal.RequireFromString(size)
	p := decimal.RequireFromString(price)
	return domain.Position{
		ID:         id,
		EventID:    eventID,
		MarketID:   "m-" + id,
		Slug:       "slug-" + id,
		Side:       domain.SideYes,
		EntryProb:  0.9,
		EntryPrice: p,
		Size:       s,
		Cost:       s.Mul(p),
		TokenID:    "tok-" + id,
		OpenedAt:   time.Now().UTC(),
	}
}

func TestState_OpenAndSettle(t *testing.T) {
	st := domain.NewState(decimal.NewFromInt(1000))
	pos := makePosition("p1", "e1", "100", "0.9")
	require.True(t, pos.Valid())

	st.Open(pos)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(910)))
	assert.Equal(t, 1, st.Locks.Count("e1"))

	closed, err := st.Settle("p1", domain.ResolutionYes, decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)
	assert.True(t, closed.PnL.Equal(decimal.NewFromInt(10)))
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(1010)))
	assert.Empty(t, st.Positions)
	require.Len(t, st.Closed, 1)
}

func TestState_SettleTwice(t *testing.T) {
	st := domain.NewState(decimal.NewFromInt(1000))
	st.Open(makePosition("p1", "e1", "100", "0.9"))

	_, err := st.Settle("p1", domain.ResolutionStopLoss, decimal.NewFromInt(55), time.Now())
	require.NoError(t, err)

	_, err = st.Settle("p1", domain.ResolutionYes, decimal.NewFromInt(100), time.Now())
	assert.ErrorIs(t, err, domain.ErrPositionNotOpen)
	assert.Len(t, st.Closed, 1)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(965)))
}

func TestState_PnLExact(t *testing.T) {
	pos := makePosition("p1", "e1", "11.1111", "0.9")
	payout := pos.Size.Mul(decimal.RequireFromString("0.55"))
	closed := pos.Close(domain.ResolutionStopLoss, payout, time.Now())
	assert.True(t, closed.Payout.Sub(closed.Cost).Equal(closed.PnL))
}

func TestState_CloneIsolated(t *testing.T) {
	st := domain.NewState(decimal.NewFromInt(100))
	st.Open(makePosition("p1", "e1", "10", "0.5"))

	c := st.Clone()
	c.Locks.Record("e1")
	c.Positions[0].Slug = "changed"

	assert.Equal(t, 1, st.Locks.Count("e1"))
	assert.Equal(t, "slug-p1", st.Positions[0].Slug)
}

func TestState_Snapshot(t *testing.T) {
	st := domain.NewState(decimal.NewFromInt(1000))
	st.Open(makePosition("p1", "e1", "100", "0.9"))
	st.Open(makePosition("p2", "e2", "10", "0.8"))
	_, err := st.Settle("p2", domain.ResolutionNo, decimal.Zero, time.Now())
	require.NoError(t, err)

	snap := st.Snapshot()
	assert.Equal(t, 1, snap.Positions)
	assert.Equal(t, 1, snap.ClosedPositions)
	assert.Equal(t, 2, snap.EventLocks)
	assert.True(t, snap.RealizedPnL.Equal(decimal.NewFromInt(-8)))
	assert.True(t, snap.TotalValue.Equal(decimal.NewFromInt(992)))
	require.Len(t, snap.OpenTrades, 1)
	assert.Equal(t, "slug-p1", snap.OpenTrades[0].Slug)
}

func TestEventLocks(t *testing.T) {
	l := domain.EventLocks{}
	assert.False(t, l.IsLocked("e1", 2))
	l.Record("e1")
	assert.False(t, l.IsLocked("e1", 2))
	l.Record("e1")
	assert.True(t, l.IsLocked("e1", 2))
	assert.Equal(t, 1, l.Locked(2))
	l.Release("e1")
	assert.False(t, l.IsLocked("e1", 2))
}
