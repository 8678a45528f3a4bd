package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/alejandrodnm/resolvebot/internal/ports"
	"github.com/alejandrodnm/resolvebot/internal/scanner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPerEventCap = 2
	defaultStopDrop    = 0.25
	saveTimeout        = 30 * time.Second
)

// CandidateSource es lo mínimo que el engine necesita del pipeline de elegibilidad.
type CandidateSource interface {
	Scan(ctx context.Context, locks ports.LockChecker) (scanner.Result, error)
}

// Config contiene las reglas del ciclo de vida de posiciones.
type Config struct {
	StopProbDrop     float64
	PerEventCap      int
	StakeUSD         decimal.Decimal
	MaxOpenPositions int // 0 = sin límite

	// ReleaseLocksOnClose libera el lock de un evento cuando se cierra su
	// última posición abierta. Por defecto los locks son permanentes.
	ReleaseLocksOnClose bool
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		StopProbDrop: defaultStopDrop,
		PerEventCap:  defaultPerEventCap,
		StakeUSD:     decimal.NewFromInt(10),
	}
}

// Engine es el gestor del ciclo de vida de posiciones y el orquestador del ciclo.
// Toda mutación del estado y todo save pasan por mu; las llamadas de red no.
type Engine struct {
	cfg     Config
	scanner CandidateSource
	markets ports.MarketProvider
	books   ports.BookProvider
	store   ports.StateStore
	ledger  ports.Ledger

	mu    sync.Mutex
	state *domain.State
	dirty bool

	now   func() time.Time
	newID func() string
}

// Option configura un Engine.
type Option func(*Engine)

// WithClock reemplaza el reloj usado para timestamps de apertura y cierre.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator reemplaza el generador de ids de posición.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New crea un Engine sobre el estado ya cargado.
// ledger puede ser nil si no se quiere registro de trades.
func New(
	cfg Config,
	state *domain.State,
	source CandidateSource,
	markets ports.MarketProvider,
	books ports.BookProvider,
	store ports.StateStore,
	ledger ports.Ledger,
	opts ...Option,
) *Engine {
	if cfg.PerEventCap <= 0 {
		cfg.PerEventCap = defaultPerEventCap
	}
	if state == nil {
		state = domain.NewState(decimal.Zero)
	}
	state.Normalize()
	e := &Engine{
		cfg:     cfg,
		scanner: source,
		markets: markets,
		books:   books,
		store:   store,
		ledger:  ledger,
		state:   state,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadState restaura el estado durable. Sin snapshot previo devuelve el
// estado inicial con initialBalance; cualquier otro error es fatal para el llamador.
func LoadState(ctx context.Context, store ports.StateStore, initialBalance decimal.Decimal) (*domain.State, error) {
	state, err := store.Load(ctx)
	if errors.Is(err, domain.ErrNoState) {
		slog.Info("no persisted state, starting fresh", "balance", initialBalance.StringFixed(2))
		return domain.NewState(initialBalance), nil
	}
	if err != nil {
		return nil, fmt.Errorf("engine.LoadState: %w", err)
	}
	state.Normalize()
	return state, nil
}

// CycleReport resume lo ocurrido en un ciclo.
type CycleReport struct {
	Settled     []domain.ClosedPosition
	Opened      []domain.Position
	CheckErrors int // fetch errors durante la pasada de liquidación
	Skipped     SkipCounts
	Scan        scanner.Stats
	Saved       bool
	Balance     decimal.Decimal
	OpenCount   int
	Duration    time.Duration
}

// SkipCounts cuenta candidatos elegibles que no se abrieron, por motivo.
type SkipCounts struct {
	Locked      int
	Balance     int
	MaxOpen     int
	InvalidSize int
}

// RunCycle ejecuta un ciclo completo: liquidación → scan → aperturas → save.
// Un ciclo que no mutó el estado no se persiste.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	start := e.now()
	var rep CycleReport

	e.settlementPass(ctx, &rep)

	res, err := e.scanner.Scan(ctx, e)
	rep.Scan = res.Stats
	if err == nil {
		e.openCandidates(res.Candidates, &rep)
	}

	saved, saveErr := e.saveIfDirty(ctx)
	rep.Saved = saved

	e.mu.Lock()
	rep.Balance = e.state.Balance
	rep.OpenCount = len(e.state.Positions)
	e.mu.Unlock()
	rep.Duration = e.now().Sub(start)

	if err != nil {
		return rep, fmt.Errorf("engine.RunCycle: scan: %w", err)
	}
	if saveErr != nil {
		return rep, fmt.Errorf("engine.RunCycle: %w", saveErr)
	}
	return rep, nil
}

// IsLocked implementa ports.LockChecker para el scanner.
func (e *Engine) IsLocked(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Locks.IsLocked(eventID, e.cfg.PerEventCap)
}

// Snapshot devuelve la vista de status del estado actual.
func (e *Engine) Snapshot() domain.StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// State devuelve una copia profunda del estado actual.
func (e *Engine) State() *domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// OpenTokenIDs devuelve los tokens de las posiciones abiertas, sin duplicados y ordenados.
func (e *Engine) OpenTokenIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{}, len(e.state.Positions))
	ids := make([]string, 0, len(e.state.Positions))
	for _, p := range e.state.Positions {
		if _, ok := seen[p.TokenID]; ok || p.TokenID == "" {
			continue
		}
		seen[p.TokenID] = struct{}{}
		ids = append(ids, p.TokenID)
	}
	sort.Strings(ids)
	return ids
}

// saveIfDirty persiste el snapshot si hubo mutaciones desde el último save.
func (e *Engine) saveIfDirty(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return false, nil
	}
	if err := e.saveLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Flush persiste el estado pendiente de guardar, si lo hay.
func (e *Engine) Flush(ctx context.Context) error {
	if _, err := e.saveIfDirty(ctx); err != nil {
		return fmt.Errorf("engine.Flush: %w", err)
	}
	return nil
}

// saveLocked persiste el snapshot completo. El llamador debe tener e.mu.
// El save no hereda la cancelación de ctx: lo liquidado se persiste aunque
// el proceso se esté apagando.
func (e *Engine) saveLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := e.store.Save(ctx, e.state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	e.dirty = false
	return nil
}
