package scanner

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// checkOutcome es el resultado del chequeo de un mercado. Los flags no son
// excluyentes: un lado puede caer por probabilidad y el otro por liquidez.
type checkOutcome struct {
	candidate *domain.Candidate

	fetchError        bool
	timeFiltered      bool
	probFiltered      bool
	liquidityFiltered bool
}

func (o checkOutcome) tally(st *Stats) {
	if o.fetchError {
		st.FetchErrors++
	}
	if o.timeFiltered {
		st.TimeFiltered++
	}
	if o.probFiltered {
		st.ProbFiltered++
	}
	if o.liquidityFiltered {
		st.LiquidityFiltered++
	}
}

// sideQuote es un lado que pasó el filtro de probabilidad del listado.
type sideQuote struct {
	side    domain.Side
	prob    float64
	tokenID string
}

// checkMarket aplica los filtros caros en orden de costo: detalle, tiempo,
// probabilidad y, solo para los lados que sobreviven, orderbook y liquidez.
// Emite como mucho un candidato: el primer lado (YES, luego NO) que pase.
func (s *Scanner) checkMarket(ctx context.Context, job marketJob) checkOutcome {
	var out checkOutcome

	market, err := s.markets.FetchMarketBySlug(ctx, job.market.Slug)
	if err != nil {
		slog.Debug("market detail fetch failed", "market", job.market.Slug, "err", err)
		out.fetchError = true
		return out
	}
	if !market.Complete() {
		slog.Debug("market detail incomplete", "market", job.market.Slug, "err", domain.ErrIncompleteMarket)
		out.fetchError = true
		return out
	}

	hours := market.HoursToClose(s.now())
	if hours <= 0 || hours > s.cfg.MaxHoursToClose {
		out.timeFiltered = true
		return out
	}

	var quotes []sideQuote
	for _, side := range domain.Sides() {
		prob, err := market.Probability(side)
		if err != nil {
			out.fetchError = true
			return out
		}
		if !s.cfg.InBand(prob) {
			out.probFiltered = true
			continue
		}
		quotes = append(quotes, sideQuote{side: side, prob: prob, tokenID: market.TokenID(side)})
	}
	if len(quotes) == 0 {
		return out
	}

	for _, q := range quotes {
		if q.tokenID == "" {
			out.fetchError = true
			continue
		}
		book, err := s.books.FetchOrderBook(ctx, q.tokenID)
		if err != nil {
			slog.Debug("order book fetch failed", "market", job.market.Slug, "side", q.side, "err", err)
			out.fetchError = true
			continue
		}
		if len(book.Asks) == 0 {
			continue
		}

		bestAsk := book.BestAsk()
		if !s.cfg.InBand(bestAsk) {
			out.probFiltered = true
			continue
		}
		c := domain.Candidate{
			EventID:      job.event.ID,
			MarketID:     market.ID,
			Slug:         job.market.Slug,
			Side:         q.side,
			TokenID:      q.tokenID,
			Probability:  q.prob,
			BestAsk:      bestAsk,
			AskSize:      book.SizeAt(bestAsk),
			HoursToClose: hours,
			EndDate:      market.EndDate,
		}
		if c.Liquidity() < s.cfg.MinLiquidityUSD {
			out.liquidityFiltered = true
			continue
		}
		out.candidate = &c
		return out
	}
	return out
}
