package state

import "sync"

// registry is a map keyed by casemapped names.  It is safe for concurrent
// use; values returns a copy so callers can iterate while the registry is
// mutated.
type registry[T any] struct {
	l       sync.RWMutex
	casemap func(string) string
	items   map[string]T
}

func newRegistry[T any](casemap func(string) string) *registry[T] {
	return &registry[T]{
		casemap: casemap,
		items:   map[string]T{},
	}
}

func (r *registry[T]) key(name string) string {
	return r.casemap(name)
}

func (r *registry[T]) get(name string) (v T, ok bool) {
	key := r.key(name)
	r.l.RLock()
	v, ok = r.items[key]
	r.l.RUnlock()
	return
}

// getOrPut returns the value stored under name, or stores and returns the
// one made by create.
func (r *registry[T]) getOrPut(name string, create func() T) (v T, created bool) {
	key := r.key(name)
	r.l.Lock()
	defer r.l.Unlock()
	if v, ok := r.items[key]; ok {
		return v, false
	}
	v = create()
	r.items[key] = v
	return v, true
}

func (r *registry[T]) put(name string, v T) {
	key := r.key(name)
	r.l.Lock()
	r.items[key] = v
	r.l.Unlock()
}

func (r *registry[T]) remove(name string) (v T, ok bool) {
	key := r.key(name)
	r.l.Lock()
	v, ok = r.items[key]
	delete(r.items, key)
	r.l.Unlock()
	return
}

// rename moves the value stored under from to to.  It reports false if
// nothing is stored under from.
func (r *registry[T]) rename(from, to string) (v T, ok bool) {
	fromKey, toKey := r.key(from), r.key(to)
	r.l.Lock()
	defer r.l.Unlock()
	v, ok = r.items[fromKey]
	if !ok {
		return
	}
	delete(r.items, fromKey)
	r.items[toKey] = v
	return
}

func (r *registry[T]) values() []T {
	r.l.RLock()
	defer r.l.RUnlock()
	vs := make([]T, 0, len(r.items))
	for _, v := range r.items {
		vs = append(vs, v)
	}
	return vs
}

func (r *registry[T]) len() int {
	r.l.RLock()
	defer r.l.RUnlock()
	return len(r.items)
}

// refold recomputes every key, after the casemapping changed.  name gives
// the display name of a value.
func (r *registry[T]) refold(name func(T) string) {
	r.l.Lock()
	defer r.l.Unlock()
	items := make(map[string]T, len(r.items))
	for _, v := range r.items {
		items[r.casemap(name(v))] = v
	}
	r.items = items
}

func (r *registry[T]) clear() {
	r.l.Lock()
	r.items = map[string]T{}
	r.l.Unlock()
}
