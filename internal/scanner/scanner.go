package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/alejandrodnm/resolvebot/internal/ports"
)

const (
	defaultPageSize          = 100
	defaultBatchSize         = 10
	defaultBatchDelay        = 5 * time.Millisecond
	defaultRateLimitCooldown = 60 * time.Second
	defaultRateLimitRetries  = 5
)

// Config contiene los umbrales del pipeline de elegibilidad.
type Config struct {
	MaxHoursToClose float64
	MinProbability  float64
	MaxProbability  float64
	MinLiquidityUSD float64

	PageSize            int
	BatchSize           int
	BatchDelay          time.Duration
	RateLimitCooldown   time.Duration
	MaxRateLimitRetries int

	Denylist Denylist
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		MaxHoursToClose:     4,
		MinProbability:      0.80,
		MaxProbability:      0.96,
		MinLiquidityUSD:     2,
		PageSize:            defaultPageSize,
		BatchSize:           defaultBatchSize,
		BatchDelay:          defaultBatchDelay,
		RateLimitCooldown:   defaultRateLimitCooldown,
		MaxRateLimitRetries: defaultRateLimitRetries,
		Denylist:            DefaultDenylist(),
	}
}

// InBand indica si p cae dentro de la banda de probabilidad [min, max].
func (c Config) InBand(p float64) bool {
	return p >= c.MinProbability && p <= c.MaxProbability
}

// Stats son los contadores de un scan, para observabilidad.
type Stats struct {
	Events            int
	Markets           int
	LockedEvents      int
	Denylisted        int
	Checked           int
	FetchErrors       int
	TimeFiltered      int
	ProbFiltered      int
	LiquidityFiltered int
	Eligible          int
	Duration          time.Duration
}

// Result es la salida de un scan: candidatos en orden de descubrimiento.
type Result struct {
	Candidates []domain.Candidate
	Stats      Stats
}

// Scanner es el pipeline de elegibilidad: discovery → exclusiones estáticas →
// detalle → tiempo → probabilidad → orderbook/liquidez.
type Scanner struct {
	cfg     Config
	events  ports.EventLister
	markets ports.MarketProvider
	books   ports.BookProvider
	slugs   *SlugFilter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configura un Scanner.
type Option func(*Scanner)

// WithClock reemplaza el reloj usado por el filtro de tiempo.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithSleep reemplaza la espera usada en cooldowns y pausas entre batches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scanner) { s.sleep = sleep }
}

// New crea un Scanner con todas las dependencias inyectadas.
func New(cfg Config, events ports.EventLister, markets ports.MarketProvider, books ports.BookProvider, opts ...Option) *Scanner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRateLimitRetries < 0 {
		cfg.MaxRateLimitRetries = 0
	}
	s := &Scanner{
		cfg:     cfg,
		events:  events,
		markets: markets,
		books:   books,
		slugs:   NewSlugFilter(cfg.Denylist),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan ejecuta el pipeline completo. Los errores de fetch por mercado se
// cuentan y se saltan; solo devuelve error si el contexto se cancela.
func (s *Scanner) Scan(ctx context.Context, locks ports.LockChecker) (Result, error) {
	start := s.now()
	var res Result

	events := s.discover(ctx)
	res.Stats.Events = len(events)

	jobs := s.collectJobs(events, locks, &res.Stats)
	res.Stats.Markets = len(jobs)

	if len(jobs) > 0 {
		outcomes := s.checkBatches(ctx, jobs)
		for _, o := range outcomes {
			res.Stats.Checked++
			o.tally(&res.Stats)
			if o.candidate != nil {
				res.Candidates = append(res.Candidates, *o.candidate)
			}
		}
	}
	res.Stats.Eligible = len(res.Candidates)
	res.Stats.Duration = s.now().Sub(start)

	slog.Info("scan complete",
		"events", res.Stats.Events,
		"markets", res.Stats.Markets,
		"locked_events", res.Stats.LockedEvents,
		"denylisted", res.Stats.Denylisted,
		"checked", res.Stats.Checked,
		"fetch_errors", res.Stats.FetchErrors,
		"time_filtered", res.Stats.TimeFiltered,
		"prob_filtered", res.Stats.ProbFiltered,
		"liquidity_filtered", res.Stats.LiquidityFiltered,
		"eligible", res.Stats.Eligible,
		"duration", res.Stats.Duration.Round(time.Millisecond),
	)
	for i, c := range res.Candidates {
		slog.Debug("eligible market",
			"rank", i+1,
			"market", c.Slug,
			"side", c.Side,
			"best_ask", c.BestAsk,
			"liquidity", c.Liquidity(),
		)
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("scanner.Scan: %w", err)
	}
	return res, nil
}

// marketJob es un mercado pendiente de chequeo junto a su evento.
type marketJob struct {
	event  domain.Event
	market domain.EventMarket
}

// collectJobs aplica las exclusiones sin red: eventos con lock y slugs en la denylist.
func (s *Scanner) collectJobs(events []domain.Event, locks ports.LockChecker, stats *Stats) []marketJob {
	var jobs []marketJob
	for _, ev := range events {
		if locks != nil && locks.IsLocked(ev.ID) {
			stats.LockedEvents++
			continue
		}
		for _, m := range ev.Markets {
			if s.slugs.Match(m.Slug) {
				stats.Denylisted++
				continue
			}
			jobs = append(jobs, marketJob{event: ev, market: m})
		}
	}
	return jobs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
