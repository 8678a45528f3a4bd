package domain

import "time"

// Candidate es un (mercado, lado) que pasó todos los filtros del pipeline.
// Es efímero: se consume una sola vez en la decisión de apertura.
type Candidate struct {
	EventID      string
	MarketID     string
	Slug         string
	Side         Side
	TokenID      string
	Probability  float64 // probabilidad implícita del lado según el listado
	BestAsk      float64
	AskSize      float64 // tamaño agregado exactamente a BestAsk
	HoursToClose float64
	EndDate      time.Time
}

// Liquidity devuelve best ask × tamaño agregado al best ask.
func (c Candidate) Liquidity() float64 {
	return c.BestAsk * c.AskSize
}
