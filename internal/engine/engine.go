// Package engine is the single-writer state container for bundle
// sources. All mutations are expressed as named asynchronous actions
// applied to an immutable snapshot by one worker goroutine; readers
// observe committed snapshots and a stream of subsequent ones, never a
// half-applied mutation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"patchbay/internal/config"
	"patchbay/internal/entities/bundle"
	"patchbay/internal/netstatus"
	"patchbay/internal/notify"
	"patchbay/internal/source"
	"patchbay/internal/store"

	"golang.org/x/exp/maps"
)

// progressClearDelay bounds how long a terminal batch result stays
// visible before the progress stream resets.
const progressClearDelay = 3500 * time.Millisecond

var ErrClosed = errors.New("engine is closed")

// Entry is one source as seen in a snapshot: the persisted record plus
// its derived load state.
type Entry struct {
	bundle.Source
	State bundle.State
}

// State is an immutable snapshot of the engine. Info only holds entries
// whose content parsed successfully, so its keys are always a subset of
// Sources'.
type State struct {
	Sources map[int64]Entry
	Info    map[int64]*bundle.Info
}

func newState() State {
	return State{
		Sources: make(map[int64]Entry),
		Info:    make(map[int64]*bundle.Info),
	}
}

func (s State) clone() State {
	return State{
		Sources: maps.Clone(s.Sources),
		Info:    maps.Clone(s.Info),
	}
}

// Ordered returns the snapshot's entries by sort order.
func (s State) Ordered() []Entry {
	out := maps.Values(s.Sources)
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// action transforms a snapshot. A returned error leaves the committed
// snapshot unchanged; actions never partially apply.
type action func(current State) (State, error)

type command struct {
	name string
	fn   action
	done chan error
}

// Options wires the engine's collaborators.
type Options struct {
	Gateway  store.Gateway
	Factory  *source.Factory
	Config   *config.Config
	Oracle   netstatus.Oracle
	Notifier *notify.Notifier
}

// Engine owns the in-memory mirror of the persisted bundle records.
type Engine struct {
	gateway  store.Gateway
	factory  *source.Factory
	cfg      *config.Config
	oracle   netstatus.Oracle
	notifier *notify.Notifier

	commands chan command
	closed   chan struct{}
	stopped  chan struct{}

	states   *feed[State]
	progress *feed[Progress]
	manual   *feed[map[int64]bundle.ManualUpdate]

	// manualInfo is only touched by the worker goroutine.
	manualInfo map[int64]bundle.ManualUpdate

	clearDelay time.Duration
	clearTimer *time.Timer
}

// New creates the engine and starts its worker. Callers should follow
// with Reload to populate the first snapshot from persisted records.
func New(opts Options) *Engine {
	if opts.Oracle == nil {
		opts.Oracle = netstatus.Probe{}
	}
	e := &Engine{
		gateway:    opts.Gateway,
		factory:    opts.Factory,
		cfg:        opts.Config,
		oracle:     opts.Oracle,
		notifier:   opts.Notifier,
		commands:   make(chan command, 64),
		closed:     make(chan struct{}),
		stopped:    make(chan struct{}),
		states:     newFeed[State](),
		progress:   newFeed[Progress](),
		manual:     newFeed[map[int64]bundle.ManualUpdate](),
		manualInfo: make(map[int64]bundle.ManualUpdate),
		clearDelay: progressClearDelay,
	}
	e.states.Publish(newState())
	go e.run()
	return e
}

// run drains the command queue: exactly one action executes at a time,
// in submission order.
func (e *Engine) run() {
	defer close(e.stopped)
	current, _ := e.states.Latest()
	for {
		select {
		case <-e.closed:
			return
		case cmd := <-e.commands:
			next, err := cmd.fn(current)
			if err != nil {
				slog.Error("Action failed", "logger", "engine", "action", cmd.name, "err", err)
			} else {
				current = next
				e.states.Publish(current)
			}
			if cmd.done != nil {
				cmd.done <- err
			}
		}
	}
}

// Close stops the worker. Pending commands are abandoned.
func (e *Engine) Close() {
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
	<-e.stopped
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
}

// Dispatch enqueues a named action without waiting for its result.
func (e *Engine) Dispatch(name string, fn action) {
	select {
	case <-e.closed:
	case e.commands <- command{name: name, fn: fn}:
	}
}

// do enqueues an action and waits for it to commit or fail.
func (e *Engine) do(ctx context.Context, name string, fn action) error {
	done := make(chan error, 1)
	select {
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case e.commands <- command{name: name, fn: fn, done: done}:
	}
	select {
	case <-e.closed:
		return ErrClosed
	case err := <-done:
		return err
	}
}

// State returns the latest committed snapshot.
func (e *Engine) State() State {
	state, _ := e.states.Latest()
	return state
}

// Subscribe streams committed snapshots, seeded with the current one.
func (e *Engine) Subscribe() (<-chan State, func()) {
	return e.states.Subscribe()
}

// SubscribeProgress streams update batch progress.
func (e *Engine) SubscribeProgress() (<-chan Progress, func()) {
	return e.progress.Subscribe()
}

// SubscribeManualUpdates streams the manual-update bookkeeping map.
func (e *Engine) SubscribeManualUpdates() (<-chan map[int64]bundle.ManualUpdate, func()) {
	return e.manual.Subscribe()
}

// ManualUpdates returns the latest manual-update bookkeeping.
func (e *Engine) ManualUpdates() map[int64]bundle.ManualUpdate {
	latest, ok := e.manual.Latest()
	if !ok {
		return map[int64]bundle.ManualUpdate{}
	}
	return latest
}

func (e *Engine) publishManual() {
	e.manual.Publish(maps.Clone(e.manualInfo))
}
