package engine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/source"
)

// Reload rebuilds the in-memory state from persisted records. It is the
// single authoritative way memory state and durable state reconcile.
func (e *Engine) Reload(ctx context.Context) error {
	return e.do(ctx, "reload", func(State) (State, error) {
		return e.reload()
	})
}

// reload runs inside the worker, either as its own action or as the
// final step of a mutating action.
func (e *Engine) reload() (State, error) {
	records, err := e.gateway.ListAll()
	if err != nil {
		return State{}, err
	}
	settings := e.cfg.Get()

	// synthesize the official source on first run
	if len(records) == 0 && !settings.DefaultSourceRemoved {
		record := e.defaultRecord(settings.DefaultSourcePosition)
		if err := e.gateway.Upsert(record); err != nil {
			return State{}, err
		}
		records = []bundle.Source{record}
	}

	records, err = e.enforceOrder(records, settings.DefaultSourcePosition)
	if err != nil {
		return State{}, err
	}

	state := newState()
	for _, record := range records {
		entry := e.materialize(record)
		if available, ok := entry.State.(bundle.Available); ok {
			// sync the stored display name with the name the bundle
			// declares before metadata is recomputed from it
			if available.Info.Name != "" && available.Info.Name != entry.DisplayName {
				entry.DisplayName = available.Info.Name
				if err := e.gateway.Upsert(entry.Source); err != nil {
					return State{}, err
				}
			}
			state.Info[record.UID] = available.Info
		}
		state.Sources[record.UID] = entry
	}

	e.purgeManual(state)
	return state, nil
}

func (e *Engine) defaultRecord(position int) bundle.Source {
	now := time.Now().UnixMilli()
	if position < 0 {
		position = 0
	}
	return bundle.Source{
		UID:        bundle.DefaultSourceUID,
		Name:       "patchbay",
		Kind:       bundle.KindRemote,
		URL:        e.cfg.Get().DefaultSourceURL,
		AutoUpdate: true,
		SortOrder:  position,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// enforceOrder renumbers records densely and re-applies the persisted
// sort position of the official source when it drifted.
func (e *Engine) enforceOrder(records []bundle.Source, defaultPosition int) ([]bundle.Source, error) {
	defaultIdx := -1
	for i, record := range records {
		if record.IsDefault() {
			defaultIdx = i
			break
		}
	}
	if defaultIdx >= 0 {
		want := defaultPosition
		if want < 0 {
			want = 0
		}
		if want >= len(records) {
			want = len(records) - 1
		}
		if want != defaultIdx {
			slog.Info("Re-applying official source position", "logger", "engine", "from", defaultIdx, "to", want)
			record := records[defaultIdx]
			records = append(records[:defaultIdx], records[defaultIdx+1:]...)
			records = append(records[:want], append([]bundle.Source{record}, records[want:]...)...)
		}
	}

	var changed []bundle.Source
	for i := range records {
		if records[i].SortOrder != i {
			records[i].SortOrder = i
			changed = append(changed, records[i])
		}
	}
	if len(changed) > 0 {
		if err := e.gateway.UpsertAll(changed); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// materialize resolves a record into its variant and parses its content
// into bundle info. Failures are captured per source; they never abort
// the reload of others.
func (e *Engine) materialize(record bundle.Source) Entry {
	entry := Entry{Source: record}
	variant, err := e.factory.Materialize(record)
	if err != nil {
		entry.State = bundle.Failed{Err: err}
		return entry
	}

	contentPath := source.ContentPath(variant)
	if _, err := os.Stat(contentPath); err != nil {
		entry.State = bundle.Missing{}
		return entry
	}

	info, err := bundle.ParseManifestFile(contentPath)
	if err != nil {
		slog.Warn("Failed to parse bundle content", "logger", "engine", "name", record.Name, "err", err)
		entry.State = bundle.Failed{Err: err}
		return entry
	}
	info.UID = record.UID
	entry.State = bundle.Available{Info: info}
	return entry
}

// purgeManual drops manual-update bookkeeping for sources that no
// longer exist or are now auto-updating.
func (e *Engine) purgeManual(state State) {
	changed := false
	for uid := range e.manualInfo {
		entry, ok := state.Sources[uid]
		if !ok || entry.AutoUpdate {
			delete(e.manualInfo, uid)
			changed = true
		}
	}
	if changed {
		e.publishManual()
	}
}
