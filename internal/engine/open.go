package engine

import (
	"errors"
	"log/slog"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/shopspring/decimal"
)

// sizeDecimals es la precisión del tamaño en unidades de outcome token.
const sizeDecimals = 4

// sizePosition calcula la entrada simulada de un candidato: compra por
// stake al best ask, truncado y acotado al tamaño disponible a ese precio.
func sizePosition(c domain.Candidate, stake decimal.Decimal) (entry, size, cost decimal.Decimal) {
	entry = decimal.NewFromFloat(c.BestAsk)
	if !entry.IsPositive() {
		return entry, decimal.Zero, decimal.Zero
	}
	size = stake.Div(entry).Truncate(sizeDecimals)
	available := decimal.NewFromFloat(c.AskSize).Truncate(sizeDecimals)
	if size.GreaterThan(available) {
		size = available
	}
	return entry, size, size.Mul(entry)
}

// openCandidates abre posiciones en orden de emisión respetando balance,
// cap por evento y máximo de posiciones abiertas.
func (e *Engine) openCandidates(candidates []domain.Candidate, rep *CycleReport) {
	if len(candidates) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range candidates {
		p, err := e.openLocked(c)
		if err != nil {
			switch err {
			case domain.ErrEventLocked:
				rep.Skipped.Locked++
			case domain.ErrInsufficientBalance:
				rep.Skipped.Balance++
			case errMaxOpen:
				rep.Skipped.MaxOpen++
			default:
				rep.Skipped.InvalidSize++
			}
			slog.Debug("candidate not opened", "market", c.Slug, "side", c.Side, "err", err)
			continue
		}
		rep.Opened = append(rep.Opened, p)
	}
}

var (
	errMaxOpen     = errors.New("max open positions reached")
	errInvalidSize = errors.New("invalid position size")
)

// openLocked aplica las reglas de apertura a un candidato. El llamador debe tener e.mu.
func (e *Engine) openLocked(c domain.Candidate) (domain.Position, error) {
	if e.cfg.MaxOpenPositions > 0 && len(e.state.Positions) >= e.cfg.MaxOpenPositions {
		return domain.Position{}, errMaxOpen
	}
	if e.state.Locks.IsLocked(c.EventID, e.cfg.PerEventCap) {
		return domain.Position{}, domain.ErrEventLocked
	}

	entry, size, cost := sizePosition(c, e.cfg.StakeUSD)
	p := domain.Position{
		ID:         e.newID(),
		EventID:    c.EventID,
		MarketID:   c.MarketID,
		Slug:       c.Slug,
		Side:       c.Side,
		EntryProb:  c.Probability,
		EntryPrice: entry,
		Size:       size,
		Cost:       cost,
		TokenID:    c.TokenID,
		OpenedAt:   e.now(),
	}
	if !p.Valid() {
		return domain.Position{}, errInvalidSize
	}
	if cost.GreaterThan(e.state.Balance) {
		return domain.Position{}, domain.ErrInsufficientBalance
	}

	e.state.Open(p)
	e.dirty = true

	slog.Info("position opened",
		"market", p.Slug,
		"side", p.Side,
		"entry", p.EntryPrice.String(),
		"size", p.Size.String(),
		"cost", p.Cost.StringFixed(2),
		"event_locks", e.state.Locks.Count(p.EventID),
	)
	return p, nil
}
