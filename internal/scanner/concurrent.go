package scanner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// checkBatches chequea los mercados en batches de BatchSize. Dentro del
// batch los chequeos corren en paralelo y un fallo no cancela a los demás;
// los batches van en secuencia con BatchDelay entre ellos.
// El resultado conserva el orden de jobs.
func (s *Scanner) checkBatches(ctx context.Context, jobs []marketJob) []checkOutcome {
	outcomes := make([]checkOutcome, len(jobs))

	for start := 0; start < len(jobs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(jobs))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = s.checkMarket(ctx, jobs[i])
				return nil
			})
		}
		_ = g.Wait()

		if end < len(jobs) {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				for i := end; i < len(jobs); i++ {
					outcomes[i] = checkOutcome{fetchError: true}
				}
				return outcomes
			}
		}
	}
	return outcomes
}
