package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Hooks observe instance lifecycle transitions. Either field may be nil.
type Hooks struct {
	OnStarted func(class string)
	OnStopped func(class string)
}

// Option configures a Registry.
type Option[T Instance] func(*Registry[T])

// WithHooks installs lifecycle hooks.
func WithHooks[T Instance](h Hooks) Option[T] {
	return func(r *Registry[T]) {
		r.hooks = h
	}
}

// WithIDGenerator replaces the default "{class}-{uuid}" id scheme.
func WithIDGenerator[T Instance](fn func(class string) string) Option[T] {
	return func(r *Registry[T]) {
		r.newID = fn
	}
}

type entry[T Instance] struct {
	mu      sync.Mutex
	class   string
	inst    T
	stopped bool
}

// Registry holds live instances keyed by id.
//
// The id map is guarded by the registry lock. Each instance has its own lock,
// held for the duration of OnStart, OnStop and every Do call, so calls against
// one instance are serialized while different instances proceed in parallel.
type Registry[T Instance] struct {
	classes *Classes[T]
	newID   func(class string) string
	hooks   Hooks

	mu      sync.RWMutex
	entries map[string]*entry[T]
}

// NewRegistry creates an empty registry for instances of the given classes.
func NewRegistry[T Instance](classes *Classes[T], opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{
		classes: classes,
		newID:   defaultID,
		entries: make(map[string]*entry[T]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultID(class string) string {
	return class + "-" + uuid.NewString()
}

// Classes returns the class table the registry creates instances from.
func (r *Registry[T]) Classes() *Classes[T] {
	return r.classes
}

// Start creates an instance of className, registers it and runs its OnStart
// hook. The entry is visible to lookups before OnStart returns, but calls on
// it block until OnStart completes. If construction or OnStart fails, the
// entry is removed again and the error returned.
func (r *Registry[T]) Start(ctx context.Context, className string, args []json.RawMessage) (string, error) {
	class, ok := r.classes.Lookup(className)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrClassNotFound, className)
	}

	id := r.newID(className)
	inst, err := class.New(id, args)
	if err != nil {
		return "", fmt.Errorf("instance: construct %s: %w", className, err)
	}

	e := &entry[T]{class: className, inst: inst}
	e.mu.Lock()
	defer e.mu.Unlock()

	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("instance: duplicate id %s", id)
	}
	r.entries[id] = e
	r.mu.Unlock()

	if err := inst.OnStart(ctx); err != nil {
		e.stopped = true
		r.mu.Lock()
		if r.entries[id] == e {
			delete(r.entries, id)
		}
		r.mu.Unlock()
		return "", fmt.Errorf("instance: start %s: %w", id, err)
	}

	if r.hooks.OnStarted != nil {
		r.hooks.OnStarted(className)
	}
	return id, nil
}

// Stop removes the instance and runs its OnStop hook. Stopping an unknown or
// already stopped id is a no-op.
func (r *Registry[T]) Stop(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.finalize(ctx, id, e)
}

func (r *Registry[T]) finalize(ctx context.Context, id string, e *entry[T]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true

	err := e.inst.OnStop(ctx)
	if r.hooks.OnStopped != nil {
		r.hooks.OnStopped(e.class)
	}
	if err != nil {
		return fmt.Errorf("instance: stop %s: %w", id, err)
	}
	return nil
}

// Get looks up an instance without locking it.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return e.inst, true
}

// Do runs fn with exclusive access to the instance. It returns an error
// wrapping ErrInstanceNotFound if the id is unknown, or was stopped while
// waiting for the instance lock.
func (r *Registry[T]) Do(id string, fn func(T) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return fn(e.inst)
}

// IDs returns the ids of all live instances, sorted.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops every remaining instance. Errors from individual OnStop hooks
// are joined; all instances are removed regardless.
func (r *Registry[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry[T])
	r.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := r.finalize(ctx, id, entries[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
