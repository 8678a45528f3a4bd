package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

const (
	gammaEventsPath  = "/events"
	gammaMarketsPath = "/markets"
)

// ListEvents devuelve una página de eventos abiertos.
func (c *Client) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var resp []gammaEvent
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaEventsPath+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("gamma.ListEvents: offset %d: %w", offset, err)
	}

	slog.Debug("fetched events page", "offset", offset, "count", len(resp))
	return mapEvents(resp), nil
}

// FetchMarketBySlug devuelve el detalle de un mercado buscado por slug.
func (c *Client) FetchMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	m, err := c.fetchMarket(ctx, "slug", slug)
	if err != nil {
		return domain.Market{}, fmt.Errorf("gamma.FetchMarketBySlug: %w", err)
	}
	return m, nil
}

// FetchMarketByID devuelve el detalle de un mercado buscado por id.
func (c *Client) FetchMarketByID(ctx context.Context, id string) (domain.Market, error) {
	m, err := c.fetchMarket(ctx, "id", id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("gamma.FetchMarketByID: %w", err)
	}
	return m, nil
}

func (c *Client) fetchMarket(ctx context.Context, key, value string) (domain.Market, error) {
	params := url.Values{}
	params.Set(key, value)

	var resp []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaMarketsPath+"?"+params.Encode(), &resp); err != nil {
		return domain.Market{}, err
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("%s=%s: %w", key, value, domain.ErrNotFound)
	}
	return mapMarket(resp[0]), nil
}
