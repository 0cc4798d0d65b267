package turnsignal

// WritableSignal is the leaf cell: a value, an equality policy and a
// listener registry. Writes are equality gated and notify synchronously.
type WritableSignal[T any] struct {
	rctx      *ReactiveContext
	value     T
	equal     EqualFunc[T]
	listeners listenerRegistry[T]
}

// Signal creates a writable signal holding initial. Leaving initial as
// the zero value plays the role of an absent starting value.
func Signal[T any](rctx *ReactiveContext, initial T, opts ...Option[T]) *WritableSignal[T] {
	o := buildOptions(opts)
	return &WritableSignal[T]{
		rctx:  rctx,
		value: initial,
		equal: o.equal,
	}
}

func (s *WritableSignal[T]) Kind() Kind { return KindWritable }

// Value returns the current value, registering the read with the open
// tracking frame if there is one. Never mutates.
func (s *WritableSignal[T]) Value() T {
	s.rctx.register(s)
	return s.value
}

// Peek returns the current value without registering the read.
func (s *WritableSignal[T]) Peek() T {
	return s.value
}

// Set stores v and notifies listeners in subscription order, unless the
// equality policy says v is no change at all, in which case nothing
// happens. By the time listeners run, Value already returns v.
func (s *WritableSignal[T]) Set(v T) {
	if s.equal(s.value, v) {
		return
	}
	s.value = v
	s.listeners.notify(v)
}

// Update applies fn to the current value and delegates to Set.
func (s *WritableSignal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Subscribe registers listener and returns its idempotent unsubscribe.
func (s *WritableSignal[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	entry := s.listeners.add(listener)
	return func() {
		s.listeners.remove(entry)
	}
}

func (s *WritableSignal[T]) attach(handler func()) (detach func()) {
	return s.Subscribe(func(T) { handler() })
}
