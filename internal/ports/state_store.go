package ports

import (
	"context"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// StateStore es la única frontera de I/O del estado durable.
type StateStore interface {
	// Load restaura el snapshot completo. Devuelve domain.ErrNoState si
	// no existe un snapshot previo; cualquier otro error es fatal.
	Load(ctx context.Context) (*domain.State, error)

	// Save sobreescribe el snapshot completo.
	Save(ctx context.Context, state *domain.State) error
}

// Ledger registra una fila append-only por cada liquidación.
type Ledger interface {
	Record(ctx context.Context, closed domain.ClosedPosition) error
}

// LockChecker responde si un evento ya alcanzó su cap de exposición.
type LockChecker interface {
	IsLocked(eventID string) bool
}
