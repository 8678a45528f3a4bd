package scanner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// discover pagina el listado de eventos abiertos y acumula los que tienen
// al menos un mercado. Un 429 espera el cooldown y repite el mismo offset;
// cualquier otro error corta la paginación y devuelve lo acumulado.
func (s *Scanner) discover(ctx context.Context) []domain.Event {
	var events []domain.Event
	offset := 0
	retries := 0

	for {
		page, err := s.events.ListEvents(ctx, s.cfg.PageSize, offset)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) && retries < s.cfg.MaxRateLimitRetries {
				retries++
				slog.Warn("discovery rate limited, cooling down",
					"offset", offset,
					"cooldown", s.cfg.RateLimitCooldown,
					"attempt", retries,
				)
				if err := s.sleep(ctx, s.cfg.RateLimitCooldown); err != nil {
					return events
				}
				continue
			}
			slog.Warn("discovery aborted, returning partial result",
				"offset", offset,
				"events", len(events),
				"err", err,
			)
			return events
		}
		retries = 0

		for _, ev := range page {
			if len(ev.Markets) > 0 {
				events = append(events, ev)
			}
		}
		slog.Debug("discovery page", "offset", offset, "events", len(page))

		if len(page) < s.cfg.PageSize {
			return events
		}
		offset += s.cfg.PageSize
	}
}
