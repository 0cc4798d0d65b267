package turnsignal

import "reflect"

// Kind discriminates the three signal flavors. Every signal carries its
// kind explicitly instead of being probed structurally.
type Kind uint8

const (
	KindWritable Kind = iota + 1
	KindComputed
	KindLinked
)

func (k Kind) String() string {
	switch k {
	case KindWritable:
		return "writable"
	case KindComputed:
		return "computed"
	case KindLinked:
		return "linked"
	default:
		return "unknown"
	}
}

// AnySignal is the type-erased face of a signal, enough for the tracking
// context to collect it and for a derived signal to subscribe to it
// without knowing its value type.
type AnySignal interface {
	Kind() Kind

	// attach registers a value-blind change handler and returns its
	// detach. Derived signals use it to wire their dependency set; the
	// handler lands in the same insertion-ordered listener registry as
	// user listeners.
	attach(handler func()) (detach func())
}

// IsSignalLike reports whether v is one of this package's signals.
func IsSignalLike(v any) bool {
	_, ok := v.(AnySignal)
	return ok
}

// EqualFunc decides whether next is a meaningful change from prev.
// Returning true suppresses storage and notification.
type EqualFunc[T any] func(prev, next T) bool

// DefaultEqual is reflect.DeepEqual. Go values have no reference
// identity, so deep equality is the closest default.
func DefaultEqual[T any](prev, next T) bool {
	return reflect.DeepEqual(prev, next)
}

type signalOptions[T any] struct {
	equal EqualFunc[T]
}

type Option[T any] func(*signalOptions[T])

// WithEqual overrides the equality policy for a signal.
func WithEqual[T any](eq EqualFunc[T]) Option[T] {
	return func(o *signalOptions[T]) {
		o.equal = eq
	}
}

func buildOptions[T any](opts []Option[T]) signalOptions[T] {
	o := signalOptions[T]{equal: DefaultEqual[T]}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
