package state

// slotState is the state of a memoized snapshot.
type slotState int

const (
	notBuilt slotState = iota
	built
)

// slot holds the memoized snapshot of a live record.  It is guarded by the
// mutex of the record that owns it.
type slot[T any] struct {
	state slotState
	value T
}

// get returns the memoized snapshot, building and storing it first if
// needed.
func (s *slot[T]) get(build func() T) T {
	if s.state == built {
		return s.value
	}
	s.value = build()
	s.state = built
	return s.value
}

// peek returns the memoized snapshot without building it.
func (s *slot[T]) peek() (v T, ok bool) {
	if s.state != built {
		return
	}
	return s.value, true
}

// invalidate drops the memoized snapshot.  Every mutator of the owning
// record calls it.
func (s *slot[T]) invalidate() {
	var zero T
	s.state = notBuilt
	s.value = zero
}
