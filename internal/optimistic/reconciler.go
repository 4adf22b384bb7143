// Package optimistic applies predicted state changes immediately and
// reconciles them with server results once the remote call settles.
package optimistic

import (
	"context"
	"sync"
)

// Phase is the reconciliation state of one entity.
type Phase int

const (
	Idle Phase = iota
	Pending
	Reconciled
	RolledBack
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Reconciled:
		return "reconciled"
	case RolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Outcome reports what a settlement did.
type Outcome int

const (
	// Committed means the server value is now displayed.
	Committed Outcome = iota
	// Reverted means the displayed state went back to the pre-patch value.
	Reverted
	// Stale means a newer prediction exists and the display was left alone.
	Stale
)

// Ticket identifies one applied patch.
type Ticket[K comparable] struct {
	Key     K
	Version uint64
}

type patch[S any] struct {
	version uint64
	base    S
}

type entry[S any] struct {
	current S
	phase   Phase
	pending []patch[S]
}

// Reconciler tracks predicted state per entity key.
type Reconciler[K comparable, S any] struct {
	mu      sync.Mutex
	version uint64
	entries map[K]*entry[S]
}

// New constructs an empty Reconciler.
func New[K comparable, S any]() *Reconciler[K, S] {
	return &Reconciler[K, S]{entries: make(map[K]*entry[S])}
}

// Seed records server-known state for key, dropping any pending patches.
func (r *Reconciler[K, S]) Seed(key K, state S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = &entry[S]{current: state, phase: Idle}
}

// State returns the displayed state of key and its phase.
func (r *Reconciler[K, S]) State(key K) (S, Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		var zero S
		return zero, Idle
	}
	return e.current, e.phase
}

// Apply predicts the next state from the latest displayed state.
func (r *Reconciler[K, S]) Apply(key K, predict func(S) S) (Ticket[K], S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry[S]{}
		r.entries[key] = e
	}
	r.version++
	e.pending = append(e.pending, patch[S]{version: r.version, base: e.current})
	e.current = predict(e.current)
	e.phase = Pending
	return Ticket[K]{Key: key, Version: r.version}, e.current
}

// Settle resolves the patch behind t with the server result or error.
// Only the newest patch of a key may change what is displayed; an older
// one instead fixes the rollback base of the patch that follows it.
func (r *Reconciler[K, S]) Settle(t Ticket[K], server S, err error) (S, Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[t.Key]
	if !ok {
		var zero S
		return zero, Stale
	}
	idx := -1
	for i, p := range e.pending {
		if p.version == t.Version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return e.current, Stale
	}

	if idx < len(e.pending)-1 {
		next := &e.pending[idx+1]
		if err != nil {
			next.base = e.pending[idx].base
		} else {
			next.base = server
		}
		e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
		return e.current, Stale
	}

	if err != nil {
		e.current = e.pending[idx].base
		e.pending = e.pending[:idx]
		if len(e.pending) == 0 {
			e.phase = RolledBack
		}
		return e.current, Reverted
	}

	e.current = server
	e.pending = nil
	e.phase = Reconciled
	return e.current, Committed
}

// Do applies predict, runs call with the predicted state and settles with its result.
func (r *Reconciler[K, S]) Do(ctx context.Context, key K, predict func(S) S, call func(context.Context, S) (S, error)) (S, error) {
	ticket, predicted := r.Apply(key, predict)
	server, err := call(ctx, predicted)
	state, _ := r.Settle(ticket, server, err)
	return state, err
}
