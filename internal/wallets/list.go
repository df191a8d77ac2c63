// Package wallets keeps the persisted list of multisig wallets.
//
// [List] is the authoritative, ordered collection. Every mutation is applied
// to an observable mirror before a save is requested from the [Backend], which
// writes in the background. Loading never fails: an unreadable file is logged
// and the list starts empty.
package wallets

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/maruel/walletdb/internal/observable"
)

// Record is the constraint on stored values. Equal defines which element
// Remove matches.
type Record[T any] interface {
	Equal(other T) bool
}

// Backend persists the collection.
//
// InitAndGetPersisted binds the backend to fileName and returns the rows saved
// previously. source is kept and called later, possibly from another
// goroutine, to read the state to write. QueueUpForSave must not block.
type Backend[T any] interface {
	InitAndGetPersisted(source func() []T, fileName string) ([]T, error)
	QueueUpForSave()
}

// List is an ordered collection of T persisted through a Backend.
//
// A single goroutine is expected to mutate the list. Reads, including the
// backend's snapshots, are safe from any goroutine.
type List[T Record[T]] struct {
	backend Backend[T]

	mu     sync.RWMutex
	items  []T
	mirror *observable.List[T]
}

// New returns a list hydrated from backend.
//
// A load error is logged as a warning and the list starts empty.
func New[T Record[T]](ctx context.Context, backend Backend[T], fileName string) *List[T] {
	l := &List[T]{backend: backend}
	persisted, err := backend.InitAndGetPersisted(l.snapshot, fileName)
	if err != nil {
		slog.WarnContext(ctx, "Cannot be deserialized", "file", fileName, "err", err)
		persisted = nil
	}
	l.mu.Lock()
	l.items = append(l.items, persisted...)
	l.mu.Unlock()
	l.Observable()
	return l
}

// Add appends item and requests a save. It always returns true since
// duplicates are allowed.
func (l *List[T]) Add(item T) bool {
	mirror := l.Observable()
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
	mirror.Add(item)
	if l.backend != nil {
		l.backend.QueueUpForSave()
	}
	return true
}

// Remove removes the first element equal to item and requests a save. It
// returns false, without requesting a save, when no element matches.
func (l *List[T]) Remove(item T) bool {
	mirror := l.Observable()
	l.mu.Lock()
	i := slices.IndexFunc(l.items, func(e T) bool { return e.Equal(item) })
	if i >= 0 {
		l.items = slices.Delete(l.items, i, i+1)
	}
	l.mu.Unlock()
	if i < 0 {
		return false
	}
	mirror.Remove(item)
	if l.backend != nil {
		l.backend.QueueUpForSave()
	}
	return true
}

// Observable returns the live mirror of the list, creating it from the
// current items on first use.
func (l *List[T]) Observable() *observable.List[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mirror == nil {
		l.mirror = observable.NewList(equal[T], l.items...)
	}
	return l.mirror
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// All returns an iterator over a snapshot of the elements.
func (l *List[T]) All() iter.Seq[T] {
	return slices.Values(l.snapshot())
}

func (l *List[T]) snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func equal[T Record[T]](a, b T) bool {
	return a.Equal(b)
}
