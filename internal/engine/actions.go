package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"patchbay/internal/config"
	"patchbay/internal/entities/bundle"
	"patchbay/internal/release"
	"patchbay/internal/source"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// CreateRemote registers a network-backed source. The url decides the
// variant: a pull request link yields a pull-request source, anything
// else a remote one.
func (e *Engine) CreateRemote(ctx context.Context, name, url string, autoUpdate bool) error {
	err := validation.Errors{
		"name": validation.Validate(name, validation.Required, validation.Length(1, 100)),
		"url":  validation.Validate(url, validation.Required, is.URL),
	}.Filter()
	if err != nil {
		return err
	}

	kind := bundle.KindRemote
	if _, err := release.ParsePullURL(url); err == nil {
		kind = bundle.KindPullRequest
	}

	return e.do(ctx, "create remote source", func(current State) (State, error) {
		for _, entry := range current.Sources {
			if entry.URL == url && entry.Kind != bundle.KindLocal {
				return State{}, fmt.Errorf("source with url %q already exists", url)
			}
		}
		uid := e.freeUID(current, source.DeriveUID(nil, "", url))
		record := bundle.Source{
			UID:        uid,
			Name:       e.freeName(current, name),
			Kind:       kind,
			URL:        url,
			AutoUpdate: autoUpdate,
			SortOrder:  e.nextSortOrder(current),
			CreatedAt:  time.Now().UnixMilli(),
			UpdatedAt:  time.Now().UnixMilli(),
		}
		if err := e.gateway.Upsert(record); err != nil {
			return State{}, err
		}
		return e.reload()
	})
}

// ImportLocal registers a source from a byte stream. The content is
// validated as a bundle before anything is persisted.
func (e *Engine) ImportLocal(ctx context.Context, name string, stream io.ReadCloser) error {
	if err := validation.Validate(name, validation.Required, validation.Length(1, 100)); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	content, err := io.ReadAll(stream)
	closeErr := stream.Close()
	if err != nil {
		return fmt.Errorf("reading import stream: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing import stream: %w", closeErr)
	}
	if _, err := bundle.ParseManifest(content); err != nil {
		return err
	}

	return e.do(ctx, "import local source", func(current State) (State, error) {
		uid := e.freeUID(current, source.DeriveUID(content, name, ""))
		record := bundle.Source{
			UID:       uid,
			Name:      e.freeName(current, name),
			Kind:      bundle.KindLocal,
			SortOrder: e.nextSortOrder(current),
			CreatedAt: time.Now().UnixMilli(),
			UpdatedAt: time.Now().UnixMilli(),
		}
		outcome, err := e.writeLocal(record, content)
		if err != nil {
			return State{}, err
		}
		record.VersionHash = outcome.VersionHash
		if err := e.gateway.Upsert(record); err != nil {
			return State{}, err
		}
		return e.reload()
	})
}

// ReplaceLocal swaps the content of an existing local source.
func (e *Engine) ReplaceLocal(ctx context.Context, uid int64, stream io.ReadCloser) error {
	content, err := io.ReadAll(stream)
	closeErr := stream.Close()
	if err != nil {
		return fmt.Errorf("reading import stream: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing import stream: %w", closeErr)
	}
	if _, err := bundle.ParseManifest(content); err != nil {
		return err
	}

	return e.do(ctx, "replace local source", func(current State) (State, error) {
		entry, ok := current.Sources[uid]
		if !ok {
			return State{}, fmt.Errorf("no source with uid %d", uid)
		}
		if entry.Kind != bundle.KindLocal {
			return State{}, fmt.Errorf("source %q is not local", entry.Label())
		}
		outcome, err := e.writeLocal(entry.Source, content)
		if err != nil {
			return State{}, err
		}
		record := entry.Source
		record.VersionHash = outcome.VersionHash
		record.UpdatedAt = time.Now().UnixMilli()
		if err := e.gateway.Upsert(record); err != nil {
			return State{}, err
		}
		return e.reload()
	})
}

func (e *Engine) writeLocal(record bundle.Source, content []byte) (*bundle.UpdateOutcome, error) {
	variant, err := e.factory.Materialize(record)
	if err != nil {
		return nil, err
	}
	local, ok := variant.(*source.Local)
	if !ok {
		return nil, fmt.Errorf("source %q is not local", record.Label())
	}
	return local.Import(io.NopCloser(bytes.NewReader(content)))
}

// Remove deletes a source. The official source is hidden rather than
// deleted: its sort position is remembered so a later restore puts it
// back where it was.
func (e *Engine) Remove(ctx context.Context, uid int64) error {
	return e.do(ctx, "remove source", func(current State) (State, error) {
		entry, ok := current.Sources[uid]
		if !ok {
			return State{}, fmt.Errorf("no source with uid %d", uid)
		}
		if entry.IsDefault() {
			if err := e.gateway.Remove(uid); err != nil {
				return State{}, err
			}
			if err := e.cfg.Update(func(s *config.Settings) {
				s.DefaultSourceRemoved = true
				s.DefaultSourcePosition = entry.SortOrder
			}); err != nil {
				// put the record back so the failed action stays a no-op
				return State{}, errors.Join(err, e.gateway.Upsert(entry.Source))
			}
			// content stays on disk so a restore needs no re-download
			return e.reload()
		}
		if err := e.gateway.Remove(uid); err != nil {
			return State{}, err
		}
		if err := e.factory.RemoveDir(uid); err != nil {
			return State{}, err
		}
		return e.reload()
	})
}

// RestoreDefault re-creates the official source at its remembered
// position. It is a no-op when the source is already present.
func (e *Engine) RestoreDefault(ctx context.Context) error {
	return e.do(ctx, "restore official source", func(current State) (State, error) {
		if _, ok := current.Sources[bundle.DefaultSourceUID]; ok {
			return current, nil
		}
		settings := e.cfg.Get()
		if err := e.gateway.Upsert(e.defaultRecord(settings.DefaultSourcePosition)); err != nil {
			return State{}, err
		}
		if err := e.cfg.Update(func(s *config.Settings) {
			s.DefaultSourceRemoved = false
		}); err != nil {
			return State{}, errors.Join(err, e.gateway.Remove(bundle.DefaultSourceUID))
		}
		return e.reload()
	})
}

// Reorder applies a new total order over all sources. uids must be a
// permutation of the current source set.
func (e *Engine) Reorder(ctx context.Context, uids []int64) error {
	return e.do(ctx, "reorder sources", func(current State) (State, error) {
		if len(uids) != len(current.Sources) {
			return State{}, fmt.Errorf("reorder lists %d sources, have %d", len(uids), len(current.Sources))
		}
		seen := make(map[int64]bool, len(uids))
		records := make([]bundle.Source, 0, len(uids))
		previous := make([]bundle.Source, 0, len(uids))
		defaultPosition := -1
		for i, uid := range uids {
			entry, ok := current.Sources[uid]
			if !ok {
				return State{}, fmt.Errorf("no source with uid %d", uid)
			}
			if seen[uid] {
				return State{}, fmt.Errorf("uid %d listed twice", uid)
			}
			seen[uid] = true
			previous = append(previous, entry.Source)
			record := entry.Source
			record.SortOrder = i
			records = append(records, record)
			if record.IsDefault() {
				defaultPosition = i
			}
		}
		if err := e.gateway.UpsertAll(records); err != nil {
			return State{}, err
		}
		if defaultPosition >= 0 {
			if err := e.cfg.Update(func(s *config.Settings) {
				s.DefaultSourcePosition = defaultPosition
			}); err != nil {
				return State{}, errors.Join(err, e.gateway.UpsertAll(previous))
			}
		}
		return e.reload()
	})
}

// SetAutoUpdate toggles unattended updates for a source. Enabling it
// clears any pending manual-update marker; the next batch covers it.
func (e *Engine) SetAutoUpdate(ctx context.Context, uid int64, enabled bool) error {
	return e.do(ctx, "set auto update", func(current State) (State, error) {
		entry, ok := current.Sources[uid]
		if !ok {
			return State{}, fmt.Errorf("no source with uid %d", uid)
		}
		record := entry.Source
		record.AutoUpdate = enabled
		record.UpdatedAt = time.Now().UnixMilli()
		if err := e.gateway.Upsert(record); err != nil {
			return State{}, err
		}
		return e.reload()
	})
}

// freeUID bumps a derived uid past any existing source that is not the
// same record, keeping identities stable while avoiding collisions.
func (e *Engine) freeUID(current State, uid int64) int64 {
	for {
		if uid == bundle.DefaultSourceUID {
			uid++
			continue
		}
		if _, taken := current.Sources[uid]; !taken {
			return uid
		}
		uid++
	}
}

// freeName suffixes a requested name with " (2)", " (3)" and so on
// until it is unique among the current sources.
func (e *Engine) freeName(current State, name string) string {
	taken := make(map[string]bool, len(current.Sources))
	for _, entry := range current.Sources {
		taken[entry.Name] = true
	}
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (e *Engine) nextSortOrder(current State) int {
	max := -1
	for _, entry := range current.Sources {
		if entry.SortOrder > max {
			max = entry.SortOrder
		}
	}
	return max + 1
}
