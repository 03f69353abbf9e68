// Package state holds the snapshot and notification plumbing shared by the
// client engines.
package state

import "sync"

// Store owns a value of T and publishes every new version to subscribers.
// Published values are snapshots: slices inside them are replaced, never
// mutated in place, and readers must treat them as read-only.
//
// Subscribers run synchronously in publish order. A subscriber may Load any
// store but must not Update the store that is notifying it.
type Store[T any] struct {
	// pub serializes publication so subscribers observe versions in order.
	pub sync.Mutex
	mu  sync.RWMutex

	value T
	subs  map[int]func(T)
	next  int
}

// NewStore returns a Store holding initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]func(T))}
}

// Load returns the current snapshot.
func (s *Store[T]) Load() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Update replaces the snapshot with fn(current) and notifies subscribers.
// It returns the published value.
func (s *Store[T]) Update(fn func(T) T) T {
	v, _ := s.UpdateIf(func(cur T) (T, bool) { return fn(cur), true })
	return v
}

// UpdateIf is Update with a veto: when fn reports false nothing is stored or
// published and the current value is returned. fn runs while the store is
// locked against other updates, so it is the place for side effects that
// must be ordered with the snapshot change. It must not call into s.
func (s *Store[T]) UpdateIf(fn func(T) (T, bool)) (T, bool) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	v, ok := fn(s.value)
	if !ok {
		cur := s.value
		s.mu.Unlock()
		return cur, false
	}
	s.value = v
	subs := make([]func(T), 0, len(s.subs))
	for i := 0; i < s.next; i++ {
		if sub, ok := s.subs[i]; ok {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(v)
	}
	return v, true
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it.
func (s *Store[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
