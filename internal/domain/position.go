package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resolution es el motivo de cierre de una posición.
type Resolution string

const (
	ResolutionStopLoss Resolution = "STOP_LOSS"
	ResolutionYes      Resolution = "YES"
	ResolutionNo       Resolution = "NO"
)

// ResolutionFor devuelve la resolución correspondiente al lado ganador.
func ResolutionFor(winner Side) Resolution {
	if winner == SideNo {
		return ResolutionNo
	}
	return ResolutionYes
}

// Position es una posición simulada abierta.
type Position struct {
	ID         string          `json:"id"`
	EventID    string          `json:"eventId"`
	MarketID   string          `json:"marketId"`
	Slug       string          `json:"slug"`
	Side       Side            `json:"side"`
	EntryProb  float64         `json:"entryProb"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Size       decimal.Decimal `json:"size"` // unidades del outcome token
	Cost       decimal.Decimal `json:"cost"` // size × entryPrice
	TokenID    string          `json:"tokenId"`
	OpenedAt   time.Time       `json:"openedAt"`
}

// Valid comprueba las invariantes de una posición abierta.
func (p Position) Valid() bool {
	return p.Cost.IsPositive() && p.Size.IsPositive() && p.EntryProb > 0 && p.EntryProb < 1
}

// ClosedPosition es el registro terminal e inmutable de una posición cerrada.
type ClosedPosition struct {
	Position
	Resolution Resolution      `json:"resolution"`
	Payout     decimal.Decimal `json:"payout"`
	PnL        decimal.Decimal `json:"pnl"` // payout - cost
	ClosedAt   time.Time       `json:"closedAt"`
}

// Close produce el registro cerrado de p con el payout dado.
func (p Position) Close(res Resolution, payout decimal.Decimal, at time.Time) ClosedPosition {
	return ClosedPosition{
		Position:   p,
		Resolution: res,
		Payout:     payout,
		PnL:        payout.Sub(p.Cost),
		ClosedAt:   at,
	}
}
