// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package status defines the error taxonomy of the runtime.
//
// Errors that cross a component boundary are one of the exported types here,
// so callers can classify them with errors.As without string matching.
package status

import (
	"errors"
	"fmt"

	"kpt.dev/converge/pkg/core"
)

// ObjectNotFoundError is returned when a reconciliation fires for a key that
// is no longer present in the store. This is expected after a delete races a
// pending trigger; it is surfaced but not retried automatically.
type ObjectNotFoundError struct {
	Ref core.ObjectRef
}

// Error implements error.
func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %s not found in store", e.Ref)
}

// IsObjectNotFound returns true if err is an ObjectNotFoundError.
func IsObjectNotFound(err error) bool {
	var nf *ObjectNotFoundError
	return errors.As(err, &nf)
}

// ReconcilerError wraps an error returned by the user reconciler.
type ReconcilerError struct {
	Ref core.ObjectRef
	Err error
}

// Error implements error.
func (e *ReconcilerError) Error() string {
	return fmt.Sprintf("reconciler failed for %s: %v", e.Ref, e.Err)
}

// Unwrap returns the reconciler's error.
func (e *ReconcilerError) Unwrap() error {
	return e.Err
}

// QueueError wraps an error item received on the trigger input stream.
type QueueError struct {
	Err error
}

// Error implements error.
func (e *QueueError) Error() string {
	return fmt.Sprintf("trigger queue error: %v", e.Err)
}

// Unwrap returns the queue's error.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// WatchError wraps a transport failure inside a watch. Watch errors are
// non-fatal: the watcher stays live and retries after emitting one.
type WatchError struct {
	Err error
}

// Error implements error.
func (e *WatchError) Error() string {
	return fmt.Sprintf("watch error: %v", e.Err)
}

// Unwrap returns the transport error.
func (e *WatchError) Unwrap() error {
	return e.Err
}

// SchedulerDequeueError wraps an internal scheduler failure. It should be
// unreachable in practice and is fatal to the applier stream.
type SchedulerDequeueError struct {
	Err error
}

// Error implements error.
func (e *SchedulerDequeueError) Error() string {
	return fmt.Sprintf("scheduler dequeue failed: %v", e.Err)
}

// Unwrap returns the scheduler's error.
func (e *SchedulerDequeueError) Unwrap() error {
	return e.Err
}
