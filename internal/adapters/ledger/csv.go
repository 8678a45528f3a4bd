package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

var header = []string{"timestamp", "slug", "side", "entryPrice", "size", "cost", "resolution", "payout", "pnl"}

// CSVLedger agrega una fila por liquidación a un archivo CSV.
// Si el archivo no existe o está vacío escribe primero la cabecera.
type CSVLedger struct {
	path string
	mu   sync.Mutex
}

// NewCSVLedger crea el ledger y garantiza la cabecera.
func NewCSVLedger(path string) (*CSVLedger, error) {
	l := &CSVLedger{path: path}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger.NewCSVLedger: open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ledger.NewCSVLedger: stat %q: %w", path, err)
	}
	if info.Size() == 0 {
		if err := writeRow(f, header); err != nil {
			return nil, fmt.Errorf("ledger.NewCSVLedger: header: %w", err)
		}
	}
	return l, nil
}

// Record implementa ports.Ledger.
func (l *CSVLedger) Record(_ context.Context, c domain.ClosedPosition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger.Record: open: %w", err)
	}
	defer f.Close()

	if err := writeRow(f, row(c)); err != nil {
		return fmt.Errorf("ledger.Record: %s: %w", c.ID, err)
	}
	return nil
}

func row(c domain.ClosedPosition) []string {
	ts := c.ClosedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return []string{
		ts.UTC().Format(time.RFC3339Nano),
		c.Slug,
		string(c.Side),
		c.EntryPrice.String(),
		c.Size.StringFixed(4),
		c.Cost.StringFixed(2),
		string(c.Resolution),
		c.Payout.StringFixed(2),
		c.PnL.StringFixed(2),
	}
}

func writeRow(f *os.File, record []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
