// Copyright 2024 Ahmad Sameh(asmsh)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fiberx is the fiber/stack-switcher collaborator that the
// Blocking-Wait Bridge consumes: current_fiber, switch_out, switch_in.
// Go has no stackful coroutine switch, so a Fiber here is a goroutine
// parked on a rendezvous channel; SwitchOut blocks it, SwitchIn wakes
// it, and the wakeup always arrives from the continuation a promise's
// fulfillment enqueues.
package fiberx

import "context"

// Fiber is a cooperatively-scheduled execution context that can
// suspend on a pending Future via SwitchOut, and be resumed from
// elsewhere via SwitchIn.
type Fiber struct {
	wake chan struct{}
}

// New returns a Fiber not yet associated with any goroutine.
// Spawn is the usual way to obtain one bound to a running goroutine.
func New() *Fiber {
	return &Fiber{wake: make(chan struct{}, 1)}
}

// Spawn starts fn in a new goroutine with a Fiber bound to its
// context, and returns once fn returns.
func Spawn(ctx context.Context, fn func(ctx context.Context)) {
	f := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(WithFiber(ctx, f))
	}()
	<-done
}

// SwitchOut suspends the calling goroutine until SwitchIn is called.
func (f *Fiber) SwitchOut() {
	<-f.wake
}

// SwitchOutCtx is SwitchOut, but also returns early with ctx.Err() if
// ctx is done first. The fiber remains valid either way: a later
// SwitchIn that arrives after a timed-out SwitchOutCtx is simply
// absorbed by the buffered wake channel.
func (f *Fiber) SwitchOutCtx(ctx context.Context) error {
	select {
	case <-f.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SwitchIn resumes a goroutine parked in SwitchOut. It never blocks:
// the wake channel is buffered so a SwitchIn that arrives before the
// matching SwitchOut is not lost.
func (f *Fiber) SwitchIn() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

type ctxKey struct{}

// WithFiber returns a context carrying f, the way callers bind Get/Wait
// calls to the fiber that may be parked on them.
func WithFiber(ctx context.Context, f *Fiber) context.Context {
	return context.WithValue(ctx, ctxKey{}, f)
}

// FromContext returns the Fiber bound to ctx, or nil if none is bound
// (the "no-fiber" case: a blocking Get/Wait outside a fiber context).
func FromContext(ctx context.Context) *Fiber {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(ctxKey{}).(*Fiber)
	return f
}
