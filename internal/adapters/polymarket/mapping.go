package polymarket

import (
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// mapEvents convierte los DTOs de Gamma a domain.Event.
func mapEvents(raw []gammaEvent) []domain.Event {
	events := make([]domain.Event, 0, len(raw))
	for _, r := range raw {
		ev := domain.Event{
			ID:      r.ID,
			Slug:    r.Slug,
			EndDate: parseTime(r.EndDate),
			Markets: make([]domain.EventMarket, 0, len(r.Markets)),
		}
		for _, m := range r.Markets {
			ev.Markets = append(ev.Markets, domain.EventMarket{ID: m.ID, Slug: m.Slug})
		}
		events = append(events, ev)
	}
	return events
}

// mapMarket convierte un gammaMarket a domain.Market.
// Los vectores incompletos dejan huecos vacíos; el llamador valida con Complete().
func mapMarket(r gammaMarket) domain.Market {
	m := domain.Market{
		ID:      r.ID,
		Slug:    r.Slug,
		Closed:  r.Closed,
		EndDate: parseTime(r.EndDate),
	}
	if m.EndDate.IsZero() {
		m.EndDate = parseTime(r.EndDateISO)
	}
	if len(r.OutcomePrices) == 2 {
		copy(m.OutcomePrices[:], r.OutcomePrices)
	}
	if len(r.ClobTokenIDs) == 2 {
		copy(m.TokenIDs[:], r.ClobTokenIDs)
	}
	return m
}

// parseTime prueba los formatos de fecha que usa Polymarket.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapOrderBook convierte la respuesta de /book a domain.OrderBook.
func mapOrderBook(r orderBookResponse) domain.OrderBook {
	return domain.OrderBook{
		TokenID: r.AssetID,
		Bids:    mapBookEntries(r.Bids, false),
		Asks:    mapBookEntries(r.Asks, true),
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}
