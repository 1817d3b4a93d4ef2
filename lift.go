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

import "fmt"

// The Lifter normalizes the three shapes a user callable can return
// into a ready Future: a plain (value, error) pair, a (error) alone
// for the empty-tuple case, or an already-async Future the callable
// built itself. Go's lack of return-type-directed dispatch means each
// shape gets its own pair of entry points (a plain call and an
// args-taking call, for use where the callable closes over nothing)
// rather than one generic Lift; all six share the same panic-recovery
// and error-wrapping discipline.

// LiftValue calls f and normalizes its outcome into a Future[T].
func LiftValue[T any](f func() (T, error)) *Future[T] {
	return liftValueCore(f)
}

// LiftValueArgs is LiftValue for a callable that takes an argument,
// avoiding a closure allocation at call sites that already have args
// in hand.
func LiftValueArgs[A any, T any](f func(A) (T, error), args A) *Future[T] {
	return liftValueCore(func() (T, error) { return f(args) })
}

func liftValueCore[T any](f func() (T, error)) (fut *Future[T]) {
	defer func() {
		if r := recover(); r != nil {
			fut = ReadyFailure[T](failureFromPanic(r))
		}
	}()
	v, err := f()
	if err != nil {
		return ReadyFailure[T](FailureFromError(err))
	}
	return ReadyValue(v)
}

// LiftEmpty calls f and normalizes its outcome into a Future[Unit].
func LiftEmpty(f func() error) *Future[Unit] {
	return liftEmptyCore(f)
}

// LiftEmptyArgs is LiftEmpty for a callable that takes an argument.
func LiftEmptyArgs[A any](f func(A) error, args A) *Future[Unit] {
	return liftEmptyCore(func() error { return f(args) })
}

func liftEmptyCore(f func() error) (fut *Future[Unit]) {
	defer func() {
		if r := recover(); r != nil {
			fut = ReadyFailure[Unit](failureFromPanic(r))
		}
	}()
	if err := f(); err != nil {
		return ReadyFailure[Unit](FailureFromError(err))
	}
	return ReadyValue(Unit{})
}

// LiftAsync calls f, which already returns a Future[T] itself, and
// normalizes a synchronous error or panic the same way the other Lift
// entry points do, without forcing the returned Future to resolve.
func LiftAsync[T any](f func() (*Future[T], error)) *Future[T] {
	return liftAsyncCore(f)
}

// LiftAsyncArgs is LiftAsync for a callable that takes an argument.
func LiftAsyncArgs[A any, T any](f func(A) (*Future[T], error), args A) *Future[T] {
	return liftAsyncCore(func() (*Future[T], error) { return f(args) })
}

func liftAsyncCore[T any](f func() (*Future[T], error)) (fut *Future[T]) {
	defer func() {
		if r := recover(); r != nil {
			fut = ReadyFailure[T](failureFromPanic(r))
		}
	}()
	got, err := f()
	if err != nil {
		return ReadyFailure[T](FailureFromError(err))
	}
	if got == nil {
		return ReadyValue(zeroOf[T]())
	}
	return got
}

func failureFromPanic(r any) *Failure {
	switch v := r.(type) {
	case *Failure:
		return v
	case error:
		return FailureFromError(v)
	default:
		return NewFailure(KindUnspecified, fmt.Sprintf("panic: %v", v))
	}
}
