package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State es el registro durable completo: wallet, posiciones abiertas,
// posiciones cerradas y registro de locks por evento.
type State struct {
	Balance   decimal.Decimal  `json:"balance"`
	Positions []Position       `json:"positions"`
	Closed    []ClosedPosition `json:"closedPositions"`
	Locks     EventLocks       `json:"eventLocks"`
}

// NewState devuelve el estado inicial vacío con el balance dado.
func NewState(balance decimal.Decimal) *State {
	return &State{
		Balance:   balance,
		Positions: []Position{},
		Closed:    []ClosedPosition{},
		Locks:     EventLocks{},
	}
}

// Normalize garantiza slices y mapa no nulos tras cargar de un store.
func (s *State) Normalize() {
	if s.Positions == nil {
		s.Positions = []Position{}
	}
	if s.Closed == nil {
		s.Closed = []ClosedPosition{}
	}
	if s.Locks == nil {
		s.Locks = EventLocks{}
	}
}

// Clone devuelve una copia profunda apta para leer o persistir fuera del lock.
func (s *State) Clone() *State {
	c := &State{
		Balance:   s.Balance,
		Positions: append([]Position(nil), s.Positions...),
		Closed:    append([]ClosedPosition(nil), s.Closed...),
		Locks:     make(EventLocks, len(s.Locks)),
	}
	for k, v := range s.Locks {
		c.Locks[k] = v
	}
	c.Normalize()
	return c
}

// IndexOf devuelve el índice de la posición abierta con ese id, o -1.
func (s *State) IndexOf(id string) int {
	for i, p := range s.Positions {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// OpenCount devuelve las posiciones abiertas contra el evento.
func (s *State) OpenCount(eventID string) int {
	n := 0
	for _, p := range s.Positions {
		if p.EventID == eventID {
			n++
		}
	}
	return n
}

// Open debita el coste, inserta la posición y registra el lock del evento.
func (s *State) Open(p Position) {
	s.Balance = s.Balance.Sub(p.Cost)
	s.Positions = append(s.Positions, p)
	s.Locks.Record(p.EventID)
}

// Settle acredita el payout y mueve la posición del set abierto al cerrado.
// Devuelve ErrPositionNotOpen si la posición ya no está abierta.
func (s *State) Settle(id string, res Resolution, payout decimal.Decimal, at time.Time) (ClosedPosition, error) {
	i := s.IndexOf(id)
	if i < 0 {
		return ClosedPosition{}, ErrPositionNotOpen
	}
	closed := s.Positions[i].Close(res, payout, at)
	s.Balance = s.Balance.Add(payout)
	s.Positions = append(s.Positions[:i:i], s.Positions[i+1:]...)
	s.Closed = append(s.Closed, closed)
	return closed, nil
}

// RealizedPnL suma el P/L de todas las posiciones cerradas.
func (s *State) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Closed {
		total = total.Add(c.PnL)
	}
	return total
}

// OpenCost suma el capital comprometido en posiciones abiertas.
func (s *State) OpenCost() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.Cost)
	}
	return total
}
