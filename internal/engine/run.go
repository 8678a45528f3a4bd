package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Run ejecuta un ciclo inmediato y luego uno por tick hasta que ctx se cancele.
// Los ciclos nunca se solapan. Un ciclo que falla o entra en pánico se loguea
// y el loop sigue con el siguiente tick. onCycle recibe cada reporte completado.
// Al cancelar ctx persiste cualquier mutación que haya quedado sin guardar.
func (e *Engine) Run(ctx context.Context, interval time.Duration, onCycle func(CycleReport)) error {
	slog.Info("engine starting", "interval", interval)

	e.safeCycle(ctx, onCycle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := e.Flush(ctx); err != nil {
				return fmt.Errorf("engine.Run: final save: %w", err)
			}
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
			e.safeCycle(ctx, onCycle)
		}
	}
}

// safeCycle corre un ciclo atrapando cualquier pánico.
func (e *Engine) safeCycle(ctx context.Context, onCycle func(CycleReport)) {
	rep, err := e.runCycleRecover(ctx)
	if err != nil {
		slog.Error("cycle failed", "err", err)
		return
	}
	if onCycle != nil {
		onCycle(rep)
	}
}

func (e *Engine) runCycleRecover(ctx context.Context) (rep CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("cycle panic stack", "stack", string(debug.Stack()))
			err = fmt.Errorf("engine: cycle panic: %v", r)
		}
	}()
	return e.RunCycle(ctx)
}
