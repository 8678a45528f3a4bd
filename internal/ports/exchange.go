package ports

import (
	"context"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// EventLister pagina el listado de eventos abiertos de Gamma.
type EventLister interface {
	// ListEvents devuelve una página de eventos abiertos (closed=false).
	// Devuelve un error que envuelve domain.ErrRateLimited ante un 429.
	ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error)
}

// MarketProvider obtiene el detalle completo de un mercado.
type MarketProvider interface {
	FetchMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	FetchMarketByID(ctx context.Context, id string) (domain.Market, error)
}

// BookProvider obtiene el orderbook de un token del CLOB.
type BookProvider interface {
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
