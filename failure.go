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

package corofuture

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FailureKind classifies the well-known failures the core itself can
// produce. Any other failure kind is transparent: the core stores and
// re-raises the descriptor without inspecting it.
type FailureKind int32

const (
	// KindUnspecified is used for failures the caller supplied directly
	// (SetFailure, ReadyFailure) rather than ones the core synthesized.
	KindUnspecified FailureKind = iota
	// KindBrokenPromise marks a Promise destroyed while pending with a
	// linked Future.
	KindBrokenPromise
	// KindNoFiber marks a blocking Get/Wait called outside a fiber
	// context.
	KindNoFiber
	// KindIOError and KindTimeout and KindCanceled are convenience kinds
	// for ReadyFailureOf; Get/Wait also return KindTimeout or KindCanceled
	// when ctx ends before the Future settles. The core does not handle
	// any of the three specially.
	KindIOError
	KindTimeout
	KindCanceled
)

func (k FailureKind) String() string {
	switch k {
	case KindBrokenPromise:
		return "broken-promise"
	case KindNoFiber:
		return "no-fiber"
	case KindIOError:
		return "io-error"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unspecified"
	}
}

// Failure is the opaque, type-erased failure descriptor: a kind, a
// message, an optional wrapped error, and (via WithCause) a causality
// chain. It is the concrete realization of the core's "failure
// descriptor wraps an underlying error kind plus provenance chain."
type Failure struct {
	kind    FailureKind
	message string
	cause   error // may itself be a *Failure, chaining causes
	stack   errors.StackTrace
}

// NewFailure builds a Failure of the given kind and message, capturing
// the caller's stack the way saltfishpr-pkg/bizerrors does.
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{
		kind:    kind,
		message: message,
		stack:   callers(),
	}
}

// FailureFromError wraps a plain error as a transparent, unspecified-kind
// Failure, used by the Lifter when a user callable returns a plain error.
func FailureFromError(err error) *Failure {
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{
		kind:    KindUnspecified,
		message: err.Error(),
		cause:   err,
		stack:   callers(),
	}
}

// WithCause returns a new Failure with f's kind, message and stack,
// whose cause is the given one; f's own previous cause, if any, is not
// carried over. finally uses
// this to prepend a new failure in front of an existing one while
// preserving causality (§4.4 Finally).
func (f *Failure) WithCause(cause *Failure) *Failure {
	return &Failure{
		kind:    f.kind,
		message: f.message,
		cause:   cause,
		stack:   f.stack,
	}
}

// Kind returns the failure's kind.
func (f *Failure) Kind() FailureKind { return f.kind }

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %s", f.kind, f.message, f.cause.Error())
	}
	return fmt.Sprintf("%s: %s", f.kind, f.message)
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (f *Failure) Unwrap() error { return f.cause }

// RootCause walks the cause chain to its last *Failure (one whose cause
// is nil or a plain, non-*Failure error), used by P3 (failure preservation) to check a propagated Failure's
// provenance.
func (f *Failure) RootCause() *Failure {
	cur := f
	for {
		next, ok := cur.cause.(*Failure)
		if !ok {
			return cur
		}
		cur = next
	}
}

// StackTrace exposes the call stack captured when the Failure was built.
func (f *Failure) StackTrace() errors.StackTrace { return f.stack }

func callers() errors.StackTrace {
	err := errors.New("")
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if st, ok := err.(stackTracer); ok {
		trace := st.StackTrace()
		if len(trace) > 2 {
			return trace[2:]
		}
		return trace
	}
	return nil
}

// ErrBrokenPromise carries the message of broken-promise failures. A
// Promise discarded while pending with a linked Future resolves it to a
// new *Failure of KindBrokenPromise with this message (plus the promise
// id), not to ErrBrokenPromise itself, so match on Kind rather than
// with errors.Is.
var ErrBrokenPromise = NewFailure(KindBrokenPromise, "promise destroyed while pending")

// ErrNoFiber is returned (wrapped in a *Failure of KindNoFiber) when
// Get/Wait is called from a context with no bound fiber.
var ErrNoFiber = NewFailure(KindNoFiber, "get/wait called outside a fiber context")

// DroppedFailureLogger is the logger hook collaborator for I5: a failed
// Future destroyed without its failure ever being observed is reported
// through it.
type DroppedFailureLogger interface {
	LogDroppedFailure(f *Failure)
}

// DroppedFailureLoggerFunc adapts a function to DroppedFailureLogger.
type DroppedFailureLoggerFunc func(f *Failure)

// LogDroppedFailure implements DroppedFailureLogger.
func (fn DroppedFailureLoggerFunc) LogDroppedFailure(f *Failure) { fn(f) }

var defaultDroppedFailureLogger DroppedFailureLogger = DroppedFailureLoggerFunc(func(f *Failure) {
	fmt.Fprintf(os.Stderr, "corofuture: dropped failure: %+v\n", f)
})

var (
	droppedFailureLoggerMu sync.Mutex
	droppedFailureLogger   = defaultDroppedFailureLogger
)

// SetDroppedFailureLogger overrides the process-wide logger used for I5
// diagnostics. Passing nil restores the default, stderr-printing logger.
func SetDroppedFailureLogger(l DroppedFailureLogger) {
	droppedFailureLoggerMu.Lock()
	defer droppedFailureLoggerMu.Unlock()
	if l == nil {
		droppedFailureLogger = defaultDroppedFailureLogger
		return
	}
	droppedFailureLogger = l
}

func reportDroppedFailure(f *Failure) {
	droppedFailureLoggerMu.Lock()
	l := droppedFailureLogger
	droppedFailureLoggerMu.Unlock()
	l.LogDroppedFailure(f)
}
