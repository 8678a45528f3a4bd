package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

const bookPath = "/book"

// FetchOrderBook obtiene el orderbook de un token del CLOB.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var resp orderBookResponse
	if err := c.get(ctx, c.booksLimiter, c.clobBase+bookPath+"?"+params.Encode(), &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook %s: %w", tokenID, err)
	}

	book := mapOrderBook(resp)
	if book.TokenID == "" {
		book.TokenID = tokenID
	}
	return book, nil
}
