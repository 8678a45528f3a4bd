package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/shopspring/decimal"
)

// probEpsilon absorbe el ruido de float al comparar la caída contra el umbral.
const probEpsilon = 1e-9

// evaluateStopLoss decide si una posición debe salir por stop-loss.
// Es la única regla de stop-loss: la usan tanto el poll del ciclo como el feed push.
// Devuelve el payout a best bid; ok=false si no dispara o no hay bid.
func evaluateStopLoss(p domain.Position, currentProb, bestBid, threshold float64) (decimal.Decimal, bool) {
	if threshold <= 0 {
		return decimal.Zero, false
	}
	if p.EntryProb-currentProb < threshold-probEpsilon {
		return decimal.Zero, false
	}
	if bestBid <= 0 {
		return decimal.Zero, false
	}
	return p.Size.Mul(decimal.NewFromFloat(bestBid)), true
}

// resolutionPayout devuelve el payout de una posición en un mercado resuelto:
// size si su lado ganó, cero si perdió.
func resolutionPayout(p domain.Position, winner domain.Side) decimal.Decimal {
	if p.Side == winner {
		return p.Size
	}
	return decimal.Zero
}

// settlementPass evalúa cada posición abierta contra stop-loss y resolución.
// Un fetch error salta esa posición hasta el siguiente ciclo sin afectar a las demás.
func (e *Engine) settlementPass(ctx context.Context, rep *CycleReport) {
	e.mu.Lock()
	open := append([]domain.Position(nil), e.state.Positions...)
	e.mu.Unlock()

	for _, p := range open {
		if ctx.Err() != nil {
			return
		}
		closed, err := e.checkPosition(ctx, p)
		if err != nil {
			rep.CheckErrors++
			slog.Warn("position check failed", "market", p.Slug, "err", err)
			continue
		}
		if closed != nil {
			rep.Settled = append(rep.Settled, *closed)
		}
	}
}

// checkPosition hace el poll de una posición: stop-loss primero (solo con
// el mercado abierto) y luego resolución. Una vez cerrada no se evalúa más.
func (e *Engine) checkPosition(ctx context.Context, p domain.Position) (*domain.ClosedPosition, error) {
	market, err := e.markets.FetchMarketByID(ctx, p.MarketID)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", p.MarketID, err)
	}

	if !market.Closed {
		current, err := market.Probability(p.Side)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", p.MarketID, domain.ErrIncompleteMarket)
		}
		if e.cfg.StopProbDrop <= 0 || p.EntryProb-current < e.cfg.StopProbDrop-probEpsilon {
			return nil, nil
		}
		book, err := e.books.FetchOrderBook(ctx, p.TokenID)
		if err != nil {
			return nil, fmt.Errorf("fetch book %s: %w", p.TokenID, err)
		}
		payout, ok := evaluateStopLoss(p, current, book.BestBid(), e.cfg.StopProbDrop)
		if !ok {
			return nil, nil
		}
		return e.settle(ctx, p, domain.ResolutionStopLoss, payout, false)
	}

	winner, ok := market.Winner()
	if !ok {
		return nil, nil
	}
	return e.settle(ctx, p, domain.ResolutionFor(winner), resolutionPayout(p, winner), false)
}

// OnBookUpdate es el camino push: aplica la misma regla de stop-loss a las
// posiciones abiertas del token del book, serializado contra el ciclo.
func (e *Engine) OnBookUpdate(ctx context.Context, book domain.OrderBook) {
	prob := book.Midpoint()
	if prob == 0 {
		prob = book.BestBid()
	}
	bid := book.BestBid()
	if prob == 0 || bid == 0 {
		return
	}

	e.mu.Lock()
	var matching []domain.Position
	for _, p := range e.state.Positions {
		if p.TokenID == book.TokenID {
			matching = append(matching, p)
		}
	}
	e.mu.Unlock()

	for _, p := range matching {
		payout, ok := evaluateStopLoss(p, prob, bid, e.cfg.StopProbDrop)
		if !ok {
			continue
		}
		if _, err := e.settle(ctx, p, domain.ResolutionStopLoss, payout, true); err != nil {
			slog.Warn("push stop-loss failed", "market", p.Slug, "err", err)
		}
	}
}

// settle cierra la posición de forma atómica bajo e.mu: acredita el payout,
// mueve la posición al set cerrado, aplica la política de locks y registra
// en el ledger. Si la posición ya no está abierta no hace nada.
// persist fuerza el save inmediato (camino push, fuera del ciclo).
func (e *Engine) settle(ctx context.Context, p domain.Position, res domain.Resolution, payout decimal.Decimal, persist bool) (*domain.ClosedPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	closed, err := e.state.Settle(p.ID, res, payout, e.now())
	if errors.Is(err, domain.ErrPositionNotOpen) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.dirty = true

	if e.cfg.ReleaseLocksOnClose && e.state.OpenCount(p.EventID) == 0 {
		e.state.Locks.Release(p.EventID)
	}

	if e.ledger != nil {
		if err := e.ledger.Record(ctx, closed); err != nil {
			slog.Warn("ledger write failed", "market", p.Slug, "err", err)
		}
	}

	slog.Info("position closed",
		"market", closed.Slug,
		"side", closed.Side,
		"resolution", closed.Resolution,
		"payout", closed.Payout.StringFixed(2),
		"pnl", closed.PnL.StringFixed(2),
	)

	if persist {
		if err := e.saveLocked(ctx); err != nil {
			return &closed, err
		}
	}
	return &closed, nil
}
