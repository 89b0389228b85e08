package task

import (
	"context"
	"reflect"
)

// composeCancel returns a context derived from parent that is also
// cancelled the first time any of extra is cancelled (or immediately,
// if one already is). The returned CancelFunc must be called on every
// exit path; it stops the internal fan-in goroutine, if one was
// started, detaching from all still-live inputs.
//
// Go has no multi-parent cancellation signal, so N input contexts are
// fanned into one derived context.Context instead.
func composeCancel(parent context.Context, extra ...context.Context) (context.Context, context.CancelFunc) {
	if len(extra) == 0 {
		return context.WithCancel(parent)
	}

	ctx, cancel := context.WithCancel(parent)
	for _, e := range extra {
		if e.Err() != nil {
			cancel()
			return ctx, cancel
		}
	}
	stop := make(chan struct{})

	go fanIn(cancel, stop, extra)

	return ctx, func() {
		close(stop)
		cancel()
	}
}

// fanIn waits on every extra input's Done channel plus stop, and
// cancels once any extra input fires. Using reflect.Select keeps this
// to one goroutine regardless of how many inputs are composed.
func fanIn(cancel context.CancelFunc, stop <-chan struct{}, extra []context.Context) {
	cases := make([]reflect.SelectCase, 0, len(extra)+1)
	for _, e := range extra {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(e.Done()),
		})
	}
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(stop),
	})

	chosen, _, _ := reflect.Select(cases)
	if chosen < len(extra) {
		cancel()
	}
	// chosen == len(extra) means stop fired first: cleanup, no
	// propagation needed.
}
