package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusSnapshot es la vista de solo lectura del estado para la superficie de status.
type StatusSnapshot struct {
	Balance         decimal.Decimal `json:"balance"`
	Positions       int             `json:"positions"`
	ClosedPositions int             `json:"closedPositions"`
	EventLocks      int             `json:"eventLocks"`
	RealizedPnL     decimal.Decimal `json:"realizedPnL"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	OpenTrades      []OpenTrade     `json:"openTrades"`
	ClosedTrades    []ClosedTrade   `json:"allClosedTrades"`
}

// OpenTrade resume una posición abierta.
type OpenTrade struct {
	Slug       string          `json:"slug"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Size       decimal.Decimal `json:"size"`
	Cost       decimal.Decimal `json:"cost"`
}

// ClosedTrade resume una posición cerrada.
type ClosedTrade struct {
	Slug       string          `json:"slug"`
	Side       Side            `json:"side"`
	Resolution Resolution      `json:"resolution"`
	PnL        decimal.Decimal `json:"pnl"`
	ClosedAt   time.Time       `json:"closedAt"`
}

// Snapshot construye la vista de status a partir del estado.
func (s *State) Snapshot() StatusSnapshot {
	snap := StatusSnapshot{
		Balance:         s.Balance,
		Positions:       len(s.Positions),
		ClosedPositions: len(s.Closed),
		EventLocks:      len(s.Locks),
		RealizedPnL:     s.RealizedPnL(),
		TotalValue:      s.Balance.Add(s.OpenCost()),
		OpenTrades:      make([]OpenTrade, 0, len(s.Positions)),
		ClosedTrades:    make([]ClosedTrade, 0, len(s.Closed)),
	}
	for _, p := range s.Positions {
		snap.OpenTrades = append(snap.OpenTrades, OpenTrade{
			Slug:       p.Slug,
			Side:       p.Side,
			EntryPrice: p.EntryPrice,
			Size:       p.Size,
			Cost:       p.Cost,
		})
	}
	for _, c := range s.Closed {
		snap.ClosedTrades = append(snap.ClosedTrades, ClosedTrade{
			Slug:       c.Slug,
			Side:       c.Side,
			Resolution: c.Resolution,
			PnL:        c.PnL,
			ClosedAt:   c.ClosedAt,
		})
	}
	return snap
}
