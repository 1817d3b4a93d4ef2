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

// Package corofuture implements a single-value, single-consumer
// asynchronous hand-off primitive: a Promise, written to exactly
// once, linked to a Future, read or chained from exactly once.
//
// # General Notes
//
// A Promise[T] and its linked Future[T] share one Value Cell, which
// starts pending and moves to either a value or a failure exactly
// once. Chaining a callback onto a Future (Then, ThenAsync,
// ThenWrapped, Finally, HandleFailure, HandleFailureOfKind) attaches
// a continuation: if the cell is already available and the Executor's
// NeedPreempt reports false, the callback runs inline, on the calling
// goroutine, before the chaining call returns; if the cell is available
// but NeedPreempt reports true, it is enqueued on the Executor at once;
// otherwise it is attached to the cell and run later by the Executor
// once the Promise resolves.
//
// A Promise discarded while still pending, with a Future still linked
// to it, resolves that Future to a broken-promise failure rather than
// leaving it pending forever. A Future that settles to a failure and
// is discarded without that failure ever being read (by Get, Ignore,
// or any of the chaining calls) is reported through the package's
// DroppedFailureLogger, by default to stderr.
//
// # Blocking
//
// Get and Wait block the calling goroutine until the Future settles.
// They require a fiber bound to ctx (see Spawn); calling either from a
// goroutine with no bound fiber fails with ErrNoFiber rather than
// deadlocking.
//
// # Modes
//
//   - Then / ThenAsync: run only on a fulfilled value; a failure skips
//     the callback and propagates unchanged.
//   - ThenWrapped: runs unconditionally, observing whichever of value
//     or failure settled.
//   - HandleFailure / HandleFailureOfKind: run only on a failure (of a
//     matching kind, for the latter); a fulfilled value propagates
//     unchanged.
//   - Finally: runs unconditionally for its side effect; a failing
//     Finally callback takes precedence over the original outcome,
//     keeping it as a cause.
package corofuture
