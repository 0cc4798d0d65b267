package turnsignal

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// derivedState is the explicit two-state machine every derived signal
// runs: Inactive means no listeners, values are pulled fresh on read;
// Active means at least one listener, the cache is pushed current by
// dependency subscriptions.
type derivedState uint8

const (
	stateInactive derivedState = iota
	stateActive
)

// ReadonlySignal is a derived, read-only signal. Its computation is
// frozen at construction; its dependency set is discovered by scanning
// the computation, not declared.
type ReadonlySignal[T any] struct {
	rctx      *ReactiveContext
	compute   func() T
	value     T
	equal     EqualFunc[T]
	state     derivedState
	listeners listenerRegistry[T]

	// deps is the dependency set in force; captured at construction and
	// recaptured once at first activation. Later activation cycles reuse
	// it verbatim, so a computation whose branching changes which signals
	// it reads can hold stale subscriptions. Known limitation, kept.
	deps      mapset.Set[AnySignal]
	rescanned bool

	// cleanups holds one detach per subscribed dependency while Active.
	cleanups []func()
}

// Computed creates a derived signal over compute. The computation runs
// once immediately to seed the cache and discover dependencies; a panic
// in it is swallowed here, leaving a zero cache and a partial set.
func Computed[T any](rctx *ReactiveContext, compute func() T, opts ...Option[T]) *ReadonlySignal[T] {
	o := buildOptions(opts)
	s := &ReadonlySignal[T]{
		rctx:    rctx,
		compute: compute,
		equal:   o.equal,
	}
	s.deps = rctx.Scan(func() {
		s.value = compute()
	})
	return s
}

func (s *ReadonlySignal[T]) Kind() Kind { return KindComputed }

// Value registers the read with the open tracking frame, then returns
// the cached value while Active, or recomputes fresh while Inactive.
// An Inactive recompute runs directly on the caller's stack: its panics
// propagate to the reader, and its inner reads register into whatever
// frame is currently topmost.
func (s *ReadonlySignal[T]) Value() T {
	s.rctx.register(s)
	if s.state == stateActive {
		return s.value
	}
	s.value = s.compute()
	return s.value
}

// Peek is Value without registering the read.
func (s *ReadonlySignal[T]) Peek() T {
	if s.state == stateActive {
		return s.value
	}
	s.value = s.compute()
	return s.value
}

// Subscribe registers listener. The first listener flips the signal
// Active: every dependency gets subscribed, the cache is reseeded, and
// the fresh value is delivered synchronously to the new listener. The
// returned unsubscribe is idempotent; removing the last listener flips
// back to Inactive and releases every dependency subscription.
func (s *ReadonlySignal[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	entry := s.listeners.add(listener)
	if s.state == stateInactive {
		s.activate()
		listener(s.value)
	}
	return func() {
		if s.listeners.remove(entry) && s.listeners.len() == 0 && s.state == stateActive {
			s.deactivate()
		}
	}
}

func (s *ReadonlySignal[T]) attach(handler func()) (detach func()) {
	return s.Subscribe(func(T) { handler() })
}

func (s *ReadonlySignal[T]) activate() {
	if !s.rescanned {
		// First activation captures a fresh set matching this very
		// recompute. Panics are swallowed by the scan.
		s.deps = s.rctx.Scan(func() {
			s.value = s.compute()
		})
		s.rescanned = true
	} else if v, ok := runRecovered(s.compute); ok {
		s.value = v
	}
	for _, dep := range s.deps.ToSlice() {
		s.cleanups = append(s.cleanups, dep.attach(s.onDependencyChanged))
	}
	s.state = stateActive
}

func (s *ReadonlySignal[T]) deactivate() {
	for _, cleanup := range s.cleanups {
		cleanup()
	}
	s.cleanups = nil
	// Cache stays as last computed; the next Inactive read refreshes it.
	s.state = stateInactive
}

// onDependencyChanged recomputes and pushes while Active. A panicking
// computation here is NOT caught; it unwinds through the Set that fired
// the dependency. Zero listeners short-circuits entirely, which guards
// reentrant unsubscribe mid-notification.
func (s *ReadonlySignal[T]) onDependencyChanged() {
	if s.listeners.len() == 0 {
		return
	}
	next := s.compute()
	if s.equal(s.value, next) {
		return
	}
	s.value = next
	s.listeners.notify(next)
}

// runRecovered calls fn, converting a panic into ok == false.
func runRecovered[T any](fn func() T) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(), true
}
