package turnsignal

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Source is any signal whose value a linked signal can derive from. The
// unexported method keeps the set closed over this package's kinds.
type Source[S any] interface {
	AnySignal
	Value() S
}

// LinkedPrevious carries the context handed to a source-form computation
// on re-derivation: the source value that fired and the linked value it
// is about to replace. Nil on the very first derivation.
type LinkedPrevious[S, T any] struct {
	Source S
	Value  T
}

// LinkedOptions configures the source form of a linked signal:
// Compute(sourceValue, previous) derives the linked value.
type LinkedOptions[S, T any] struct {
	Source  Source[S]
	Compute func(source S, previous *LinkedPrevious[S, T]) T
	Equal   EqualFunc[T]
}

// LinkedSignal derives like a computed signal but also takes direct
// writes. A written value sticks until the next subscribed dependency
// change re-derives and overwrites it.
type LinkedSignal[T any] struct {
	rctx      *ReactiveContext
	derive    func() T
	equal     EqualFunc[T]
	state     derivedState
	listeners listenerRegistry[T]

	// value is what readers see; derived is the latest derivation
	// baseline, which diverges from value while an override is pending.
	value      T
	derived    T
	overridden bool

	deps      mapset.Set[AnySignal]
	rescanned bool
	cleanups  []func()
}

// Linked creates a linked signal from a zero-argument computation whose
// reads are scanned to discover the dependency set, like Computed.
func Linked[T any](rctx *ReactiveContext, compute func() T, opts ...Option[T]) *LinkedSignal[T] {
	o := buildOptions(opts)
	s := &LinkedSignal[T]{
		rctx:  rctx,
		equal: o.equal,
	}
	s.derive = compute
	s.seed()
	return s
}

// LinkedFrom creates a linked signal in the explicit source form. It
// errors on malformed options instead of panicking later.
func LinkedFrom[S, T any](rctx *ReactiveContext, cfg LinkedOptions[S, T]) (*LinkedSignal[T], error) {
	if cfg.Source == nil {
		return nil, errors.New("linked signal: nil source")
	}
	if cfg.Compute == nil {
		return nil, fmt.Errorf("linked signal over %s source: nil computation", cfg.Source.Kind())
	}
	equal := cfg.Equal
	if equal == nil {
		equal = DefaultEqual[T]
	}
	s := &LinkedSignal[T]{
		rctx:  rctx,
		equal: equal,
	}
	primed := false
	s.derive = func() T {
		src := cfg.Source.Value()
		var prev *LinkedPrevious[S, T]
		if primed {
			prev = &LinkedPrevious[S, T]{Source: src, Value: s.value}
		}
		primed = true
		return cfg.Compute(src, prev)
	}
	s.seed()
	return s, nil
}

func (s *LinkedSignal[T]) seed() {
	s.deps = s.rctx.Scan(func() {
		s.value = s.derive()
	})
	s.derived = s.value
}

func (s *LinkedSignal[T]) Kind() Kind { return KindLinked }

// Value registers the read, then returns the cache while Active or pulls
// fresh while Inactive. An Inactive read with a pending override
// re-derives and compares against the derivation baseline: an unchanged
// derivation means upstream has not moved and the override survives; a
// changed one discards the override.
func (s *LinkedSignal[T]) Value() T {
	s.rctx.register(s)
	return s.current()
}

// Peek is Value without registering the read.
func (s *LinkedSignal[T]) Peek() T {
	return s.current()
}

func (s *LinkedSignal[T]) current() T {
	if s.state == stateActive {
		return s.value
	}
	fresh := s.derive()
	if s.overridden && s.equal(fresh, s.derived) {
		return s.value
	}
	s.overridden = false
	s.derived = fresh
	s.value = fresh
	return fresh
}

// Set writes directly, bypassing the computation, gated by the equality
// policy exactly like a writable signal. The override holds until the
// next dependency change re-derives. An Inactive write settles the
// derivation baseline first, so upstream changes that happened before
// the write cannot masquerade as ones that happened after it.
func (s *LinkedSignal[T]) Set(v T) {
	if s.state == stateInactive {
		s.current()
	}
	if s.equal(s.value, v) {
		return
	}
	s.value = v
	s.overridden = true
	s.listeners.notify(v)
}

// Update applies fn to the current value and delegates to Set.
func (s *LinkedSignal[T]) Update(fn func(T) T) {
	s.Set(fn(s.current()))
}

// Subscribe mirrors ReadonlySignal.Subscribe: the first listener flips
// Active, subscribes every dependency, reseeds the cache from the
// computation (dropping any pending override) and synchronously delivers
// the seeded value to the new listener.
func (s *LinkedSignal[T]) Subscribe(listener func(T)) (unsubscribe func()) {
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

func (s *LinkedSignal[T]) attach(handler func()) (detach func()) {
	return s.Subscribe(func(T) { handler() })
}

func (s *LinkedSignal[T]) activate() {
	if !s.rescanned {
		s.deps = s.rctx.Scan(func() {
			s.value = s.derive()
		})
		s.rescanned = true
	} else if v, ok := runRecovered(s.derive); ok {
		s.value = v
	}
	s.derived = s.value
	s.overridden = false
	for _, dep := range s.deps.ToSlice() {
		s.cleanups = append(s.cleanups, dep.attach(s.onDependencyChanged))
	}
	s.state = stateActive
}

func (s *LinkedSignal[T]) deactivate() {
	for _, cleanup := range s.cleanups {
		cleanup()
	}
	s.cleanups = nil
	s.state = stateInactive
}

func (s *LinkedSignal[T]) onDependencyChanged() {
	if s.listeners.len() == 0 {
		return
	}
	next := s.derive()
	s.derived = next
	s.overridden = false
	if s.equal(s.value, next) {
		return
	}
	s.value = next
	s.listeners.notify(next)
}
