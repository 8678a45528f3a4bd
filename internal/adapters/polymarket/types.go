package polymarket

import (
	"encoding/json"
	"fmt"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaEvent es un item de GET /events.
type gammaEvent struct {
	ID      string             `json:"id"`
	Slug    string             `json:"slug"`
	EndDate string             `json:"endDate"`
	Markets []gammaEventMarket `json:"markets"`
}

// gammaEventMarket es la referencia a un mercado dentro de un evento.
type gammaEventMarket struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// gammaMarket es un item de GET /markets.
// outcomePrices y clobTokenIds llegan como arrays JSON codificados en string.
type gammaMarket struct {
	ID            string     `json:"id"`
	Slug          string     `json:"slug"`
	Closed        bool       `json:"closed"`
	EndDate       string     `json:"endDate"`
	EndDateISO    string     `json:"endDateIso"`
	OutcomePrices stringList `json:"outcomePrices"`
	ClobTokenIDs  stringList `json:"clobTokenIds"`
}

// stringList acepta tanto `"[\"0.5\",\"0.5\"]"` como `["0.5","0.5"]`.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var encoded string
	if err := json.Unmarshal(b, &encoded); err != nil {
		return fmt.Errorf("stringList: %w", err)
	}
	if encoded == "" {
		*s = nil
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return fmt.Errorf("stringList: decode %q: %w", encoded, err)
	}
	*s = list
	return nil
}

// --- CLOB API ---

// orderBookResponse es la respuesta de GET /book y el payload "book" del feed WS.
type orderBookResponse struct {
	EventType string         `json:"event_type,omitempty"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
