package domain

// EventLocks cuenta las posiciones comprometidas por evento.
// Un evento con count >= cap queda excluido de la generación de candidatos.
type EventLocks map[string]int

// Count devuelve las posiciones registradas contra el evento.
func (l EventLocks) Count(eventID string) int {
	return l[eventID]
}

// IsLocked indica si el evento alcanzó el cap.
func (l EventLocks) IsLocked(eventID string, cap int) bool {
	return l[eventID] >= cap
}

// Record registra una apertura contra el evento.
func (l EventLocks) Record(eventID string) {
	l[eventID]++
}

// Release elimina el registro del evento. Solo se usa cuando la política
// de locks libera el evento al cerrar todas sus posiciones.
func (l EventLocks) Release(eventID string) {
	delete(l, eventID)
}

// Locked devuelve cuántos eventos están en o por encima del cap.
func (l EventLocks) Locked(cap int) int {
	n := 0
	for _, c := range l {
		if c >= cap {
			n++
		}
	}
	return n
}
