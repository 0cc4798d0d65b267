package turnsignal

// listenerEntry is one registration. Entries are never reused; an entry
// removed once stays dead, which is what makes the returned unsubscribe
// idempotent.
type listenerEntry[T any] struct {
	fn      func(T)
	removed bool
}

// listenerRegistry keeps registrations in insertion order. Go function
// values are not comparable, so uniqueness is per registration rather
// than per function reference: each Subscribe call owns exactly one slot.
type listenerRegistry[T any] struct {
	entries []*listenerEntry[T]
}

func (l *listenerRegistry[T]) add(fn func(T)) *listenerEntry[T] {
	e := &listenerEntry[T]{fn: fn}
	l.entries = append(l.entries, e)
	return e
}

// remove reports whether the entry was still registered.
func (l *listenerRegistry[T]) remove(e *listenerEntry[T]) bool {
	if e.removed {
		return false
	}
	e.removed = true
	for i, cur := range l.entries {
		if cur == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	return true
}

func (l *listenerRegistry[T]) len() int {
	return len(l.entries)
}

// notify calls every listener with v, in insertion order. Listener panics
// are not caught: the first panicking listener unwinds out of the
// triggering Set and the rest of this pass is skipped. Listeners added
// during the pass are not called until the next one; listeners removed
// during the pass are skipped via their removed flag.
func (l *listenerRegistry[T]) notify(v T) {
	snapshot := make([]*listenerEntry[T], len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		if e.removed {
			continue
		}
		e.fn(v)
	}
}
