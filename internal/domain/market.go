package domain

import (
	"strconv"
	"time"
)

// Side es uno de los dos resultados de un mercado binario.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Sides devuelve los lados en el orden fijo de evaluación: YES primero, luego NO.
func Sides() [2]Side {
	return [2]Side{SideYes, SideNo}
}

// Event agrupa uno o más mercados binarios que comparten ventana de resolución.
type Event struct {
	ID      string
	Slug    string
	EndDate time.Time
	Markets []EventMarket
}

// EventMarket es la referencia ligera a un mercado que devuelve el listado de eventos.
type EventMarket struct {
	ID   string
	Slug string
}

// Market es el detalle completo de un mercado (Gamma /markets).
type Market struct {
	ID            string
	Slug          string
	Closed        bool
	EndDate       time.Time
	OutcomePrices [2]string // decimales como strings, orden YES, NO
	TokenIDs      [2]string // instrumentos negociables, orden YES, NO
}

// HoursToClose devuelve las horas hasta EndDate respecto a now.
// Negativo si el mercado ya pasó su cierre programado.
func (m Market) HoursToClose(now time.Time) float64 {
	return m.EndDate.Sub(now).Hours()
}

// YesPrice devuelve el primer outcome price como float.
func (m Market) YesPrice() (float64, error) {
	return strconv.ParseFloat(m.OutcomePrices[0], 64)
}

// Probability devuelve la probabilidad implícita del lado dado.
// YES usa el primer outcome price; NO usa uno menos ese valor.
func (m Market) Probability(side Side) (float64, error) {
	yes, err := m.YesPrice()
	if err != nil {
		return 0, err
	}
	if side == SideNo {
		return 1 - yes, nil
	}
	return yes, nil
}

// TokenID devuelve el instrumento negociable del lado dado.
func (m Market) TokenID(side Side) string {
	if side == SideNo {
		return m.TokenIDs[1]
	}
	return m.TokenIDs[0]
}

// Winner devuelve el lado ganador si el mercado está cerrado y exactamente
// un outcome price vale 1. ok=false si todavía no está resuelto.
func (m Market) Winner() (Side, bool) {
	if !m.Closed {
		return "", false
	}
	var winners []Side
	for i, side := range Sides() {
		p, err := strconv.ParseFloat(m.OutcomePrices[i], 64)
		if err == nil && p == 1 {
			winners = append(winners, side)
		}
	}
	if len(winners) != 1 {
		return "", false
	}
	return winners[0], true
}

// Complete indica si el detalle trae los campos que consume el pipeline.
func (m Market) Complete() bool {
	return m.OutcomePrices[0] != "" && !m.EndDate.IsZero()
}
