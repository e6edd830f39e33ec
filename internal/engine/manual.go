package engine

import (
	"context"
	"log/slog"
	"sync"

	"patchbay/internal/entities/bundle"

	"golang.org/x/sync/errgroup"
)

// CheckManualUpdates polls upstream for sources excluded from
// unattended updates and records which of them have a newer version.
// Nothing is downloaded; the result is observable via ManualUpdates.
func (e *Engine) CheckManualUpdates(ctx context.Context) error {
	return e.do(ctx, "check manual updates", func(current State) (State, error) {
		if !e.oracle.IsConnected() {
			return current, nil
		}

		var targets []Entry
		for _, entry := range current.Ordered() {
			if entry.Kind == bundle.KindLocal || entry.AutoUpdate {
				continue
			}
			targets = append(targets, entry)
		}

		var mu sync.Mutex
		found := make(map[int64]bundle.ManualUpdate)
		group, groupCtx := errgroup.WithContext(ctx)
		for _, entry := range targets {
			group.Go(func() error {
				update := e.checkOne(groupCtx, entry)
				if update != nil {
					mu.Lock()
					found[entry.UID] = *update
					mu.Unlock()
				}
				return nil
			})
		}
		_ = group.Wait()

		e.manualInfo = found
		e.publishManual()
		return current, nil
	})
}

func (e *Engine) checkOne(ctx context.Context, entry Entry) *bundle.ManualUpdate {
	variant, err := e.factory.Materialize(entry.Source)
	if err != nil {
		slog.Warn("Failed to materialize source", "logger", "engine", "name", entry.Label(), "err", err)
		return nil
	}
	update, err := variant.Check(ctx)
	if err != nil {
		slog.Warn("Failed to check source for updates", "logger", "engine", "name", entry.Label(), "err", err)
		return nil
	}
	return update
}
