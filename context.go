package turnsignal

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ReactiveContext owns the dependency tracking state for one signal
// graph. There is no hidden module-level stack; every constructor takes
// the context explicitly. The zero value is ready to use.
//
// Everything here is single threaded and synchronous; the frame stack is
// only ever touched by the call stack that owns the context.
type ReactiveContext struct {
	// frames is the stack of currently recording sets. Reads register
	// into the top frame only, which is what keeps nested scans from
	// bleeding into each other.
	frames []mapset.Set[AnySignal]

	// untracked > 0 suppresses registration without closing frames.
	untracked int
}

func NewReactiveContext() *ReactiveContext {
	return &ReactiveContext{}
}

// Scan executes computation once and returns the set of signals read
// during that execution. A panic from computation is swallowed and the
// partially populated set is returned; callers must not assume a full
// dependency set after a panicking computation. That swallow-and-return
// is deliberate, inherited behavior.
func (rc *ReactiveContext) Scan(computation func()) mapset.Set[AnySignal] {
	frame := mapset.NewSet[AnySignal]()
	rc.frames = append(rc.frames, frame)
	defer func() {
		rc.frames = rc.frames[:len(rc.frames)-1]
	}()

	func() {
		defer func() {
			_ = recover()
		}()
		computation()
	}()

	return frame
}

// IsTracking reports whether any recording frame is open.
func (rc *ReactiveContext) IsTracking() bool {
	return len(rc.frames) > 0
}

// register adds s to the top recording frame, if one is open. Every
// signal's read path calls this.
func (rc *ReactiveContext) register(s AnySignal) {
	if rc.untracked > 0 || len(rc.frames) == 0 {
		return
	}
	rc.frames[len(rc.frames)-1].Add(s)
}

// Untrack runs fn with registration suppressed: signal reads inside fn do
// not land in any open frame. Frames stay open, so a scan wrapping an
// Untrack still collects reads made outside of it.
func Untrack(rc *ReactiveContext, fn func()) {
	rc.untracked++
	defer func() {
		rc.untracked--
	}()
	fn()
}
