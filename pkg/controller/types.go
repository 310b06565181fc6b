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

// Package controller runs a user-supplied reconciler on objects when they,
// or related objects, change.
package controller

import (
	"context"
	"time"

	"kpt.dev/converge/pkg/core"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Action is the user-visible result of one reconciliation attempt.
type Action struct {
	// RequeueAfter schedules a re-run roughly this long after the attempt,
	// subject to earliest-wins coalescing with other triggers. Zero means
	// no automatic re-run.
	RequeueAfter time.Duration
}

// Requeue returns an Action that re-runs after d.
func Requeue(d time.Duration) Action {
	return Action{RequeueAfter: d}
}

// Reconciler converges actual state toward the desired state of obj. It
// must be idempotent: events may be replayed after watch reconnects, and
// the store may briefly lag the cluster.
//
// Reconcilers for distinct keys run concurrently; a reconciler is never
// invoked concurrently for the same key.
type Reconciler func(ctx context.Context, obj client.Object, c *Context) (Action, error)

// ErrorPolicy computes the retry action for a failed reconciliation. The
// error it receives is the reconciler's own error, unwrapped.
type ErrorPolicy func(err error, c *Context) Action

// Context is a read-only handle to user state, shared by the reconciler
// and the error policy.
type Context struct {
	state any
}

// NewContext wraps state for sharing with callbacks.
func NewContext(state any) *Context {
	return &Context{state: state}
}

// State returns the wrapped user state.
func (c *Context) State() any {
	if c == nil {
		return nil
	}
	return c.state
}

// RefResult is one item of the trigger queue feeding an Applier: a key to
// reconcile or an upstream error to surface.
type RefResult struct {
	Ref core.ObjectRef
	Err error
}

// Result is one item of the applier output stream, produced once per
// completed reconciliation attempt. Either Err is set, or Ref and Action
// describe a successful attempt.
type Result struct {
	Ref    core.ObjectRef
	Action Action
	Err    error
}
