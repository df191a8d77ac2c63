// Package observable provides an ordered list that notifies subscribers of
// every element added or removed.
package observable

import (
	"iter"
	"slices"
	"sync"
)

// ChangeKind is the kind of mutation reported in a Change.
type ChangeKind int

const (
	// Added reports an element inserted at Index.
	Added ChangeKind = iota + 1
	// Removed reports an element removed from Index.
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes a single mutation of a List.
type Change[T any] struct {
	Kind  ChangeKind
	Index int
	Value T
}

// List is an ordered sequence that reports mutations to its subscribers.
//
// Readers may use the list from any goroutine. Subscribers are called
// synchronously on the mutating goroutine, in mutation order, after the list
// already reflects the change, and never while the internal lock is held, so
// they may read the list. They must not mutate it.
type List[T any] struct {
	eq func(a, b T) bool

	mu        sync.RWMutex
	items     []T
	listeners map[int]func(Change[T])
	nextID    int
	// notifyMu keeps notifications in mutation order across goroutines.
	notifyMu sync.Mutex
}

// NewList returns a list holding a copy of items. eq is used by Remove to
// find the element to remove.
func NewList[T any](eq func(a, b T) bool, items ...T) *List[T] {
	return &List[T]{
		eq:        eq,
		items:     slices.Clone(items),
		listeners: make(map[int]func(Change[T])),
	}
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the element at index i. It panics if i is out of range.
func (l *List[T]) At(i int) T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[i]
}

// Snapshot returns a copy of the current elements.
func (l *List[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// All returns an iterator over a snapshot of the elements.
func (l *List[T]) All() iter.Seq[T] {
	return slices.Values(l.Snapshot())
}

// Subscribe registers fn to be called on every subsequent change. The
// returned function unregisters it.
func (l *List[T]) Subscribe(fn func(Change[T])) (cancel func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

// Add appends v.
func (l *List[T]) Add(v T) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.mu.Lock()
	l.items = append(l.items, v)
	c := Change[T]{Kind: Added, Index: len(l.items) - 1, Value: v}
	fns := l.subscribers()
	l.mu.Unlock()
	notify(fns, c)
}

// Remove removes the first element equal to v and returns its index. It
// returns false when no element matches.
func (l *List[T]) Remove(v T) (int, bool) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.mu.Lock()
	i := slices.IndexFunc(l.items, func(e T) bool { return l.eq(e, v) })
	if i < 0 {
		l.mu.Unlock()
		return -1, false
	}
	c := Change[T]{Kind: Removed, Index: i, Value: l.items[i]}
	l.items = slices.Delete(l.items, i, i+1)
	fns := l.subscribers()
	l.mu.Unlock()
	notify(fns, c)
	return i, true
}

// subscribers returns the registered listeners in registration order. l.mu
// must be held.
func (l *List[T]) subscribers() []func(Change[T]) {
	if len(l.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(l.listeners))
	for id := range l.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change[T]), len(ids))
	for i, id := range ids {
		fns[i] = l.listeners[id]
	}
	return fns
}

func notify[T any](fns []func(Change[T]), c Change[T]) {
	for _, fn := range fns {
		fn(c)
	}
}
