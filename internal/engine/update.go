package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"patchbay/internal/entities/bundle"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the terminal outcome of an update batch.
type BatchResult string

const (
	// BatchSuccess means the batch committed. Individual sources may
	// still have failed; their states say so.
	BatchSuccess BatchResult = "success"
	// BatchError means the batch could not commit its results.
	BatchError BatchResult = "error"
	// BatchNoInternet means the batch never started for lack of
	// connectivity.
	BatchNoInternet BatchResult = "no_internet"
	// batchSkipped means a metered connection suppressed the batch.
	batchSkipped BatchResult = "skipped"
)

// Progress reports an update batch to observers. Completed never
// decreases within a batch and never exceeds Total; Result stays empty
// until the batch is terminal. The zero Progress means no batch is
// running.
type Progress struct {
	Total     int
	Completed int
	Result    BatchResult
}

// UpdateOptions selects and shapes an update batch.
type UpdateOptions struct {
	// UIDs limits the batch to the listed sources. Empty means every
	// network source with unattended updates enabled.
	UIDs []int64
	// Force re-downloads even when the upstream signature matches.
	Force bool
	// AllowMetered runs the batch on a metered connection regardless
	// of the configured policy.
	AllowMetered bool
}

// Update fetches the latest content for the selected sources, commits
// the outcomes in one write, and reloads. Per-source failures do not
// fail the batch; a partially updated batch is still a success.
func (e *Engine) Update(ctx context.Context, opts UpdateOptions) error {
	return e.do(ctx, "update sources", func(current State) (State, error) {
		targets := e.selectTargets(current, opts.UIDs)
		if len(targets) == 0 {
			return current, nil
		}

		if !e.oracle.IsConnected() {
			e.finishBatch(Progress{Result: BatchNoInternet})
			return current, nil
		}
		if e.oracle.IsMetered() && !opts.AllowMetered && !e.cfg.Get().AllowMeteredDownloads {
			slog.Info("Skipping update batch on metered connection", "logger", "engine")
			e.finishBatch(Progress{Result: batchSkipped})
			return current, nil
		}

		total := len(targets)
		e.progress.Publish(Progress{Total: total})

		// mu orders the counter increment and its publish as one step,
		// so observers never see the counter regress.
		var mu sync.Mutex
		completed := 0
		var changed []bundle.Source

		group, groupCtx := errgroup.WithContext(ctx)
		for _, entry := range targets {
			group.Go(func() error {
				outcome := e.fetchOne(groupCtx, entry, opts.Force)
				mu.Lock()
				if outcome != nil {
					record := entry.Source
					record.VersionHash = outcome.VersionHash
					record.UpdatedAt = time.Now().UnixMilli()
					changed = append(changed, record)
				}
				if completed < total {
					completed++
				}
				e.progress.Publish(Progress{Total: total, Completed: completed})
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()

		if len(changed) > 0 {
			if err := e.gateway.UpsertAll(changed); err != nil {
				e.finishBatch(Progress{Total: total, Completed: total, Result: BatchError})
				return State{}, err
			}
			manualChanged := false
			for _, record := range changed {
				if _, ok := e.manualInfo[record.UID]; ok {
					delete(e.manualInfo, record.UID)
					manualChanged = true
				}
			}
			if manualChanged {
				e.publishManual()
			}
		}

		next, err := e.reload()
		if err != nil {
			e.finishBatch(Progress{Total: total, Completed: total, Result: BatchError})
			return State{}, err
		}

		e.finishBatch(Progress{Total: total, Completed: total, Result: BatchSuccess})
		e.notifyBatch(len(changed), total)
		return next, nil
	})
}

// selectTargets picks the network sources a batch covers. An explicit
// uid list overrides the unattended-update filter.
func (e *Engine) selectTargets(current State, uids []int64) []Entry {
	var targets []Entry
	if len(uids) > 0 {
		for _, uid := range uids {
			entry, ok := current.Sources[uid]
			if !ok || entry.Kind == bundle.KindLocal {
				continue
			}
			targets = append(targets, entry)
		}
		return targets
	}
	for _, entry := range current.Ordered() {
		if entry.Kind == bundle.KindLocal || !entry.AutoUpdate {
			continue
		}
		targets = append(targets, entry)
	}
	return targets
}

// fetchOne refreshes or force-downloads a single source. Failures are
// logged and swallowed so one bad source never sinks the batch.
func (e *Engine) fetchOne(ctx context.Context, entry Entry, force bool) *bundle.UpdateOutcome {
	variant, err := e.factory.Materialize(entry.Source)
	if err != nil {
		slog.Warn("Failed to materialize source", "logger", "engine", "name", entry.Label(), "err", err)
		return nil
	}
	var outcome *bundle.UpdateOutcome
	if force {
		outcome, err = variant.DownloadLatest(ctx)
	} else {
		outcome, err = variant.Refresh(ctx)
	}
	if err != nil {
		slog.Warn("Failed to update source", "logger", "engine", "name", entry.Label(), "err", err)
		return nil
	}
	return outcome
}

// finishBatch publishes a terminal progress value and arms the timer
// that resets the stream back to idle.
func (e *Engine) finishBatch(p Progress) {
	e.progress.Publish(p)
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.clearTimer = time.AfterFunc(e.clearDelay, func() {
		e.progress.Publish(Progress{})
	})
}

func (e *Engine) notifyBatch(updated, total int) {
	if e.notifier == nil || updated == 0 {
		return
	}
	e.notifier.Send(fmt.Sprintf("Updated %d of %d bundle sources", updated, total))
}
