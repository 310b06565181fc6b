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

package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/reflector"
	"kpt.dev/converge/pkg/scheduler"
	"kpt.dev/converge/pkg/status"
)

const (
	// requeueBufferSize bounds the internal requeue channel. Sends block
	// when it is full; a requeue is never dropped.
	requeueBufferSize = 100
	// triggerDelay is the near-immediate due time given to external
	// triggers, letting a burst for one key coalesce into one firing.
	triggerDelay = time.Millisecond
)

// Applier wires trigger sources, store, scheduler, runner, reconciler and
// error policy into the reconciliation stream.
type Applier struct {
	Reconciler  Reconciler
	ErrorPolicy ErrorPolicy
	Context     *Context
	Store       *reflector.Store
	// Clock is the time source for trigger and requeue due times.
	// Defaults to the real clock.
	Clock clock.Clock
}

// Run starts the applier. The output yields one Result per completed
// reconciliation attempt. It closes after queue closes and all pending
// work, including requeues, has drained; cancelling ctx stops everything,
// including in-flight reconcilers.
func (a *Applier) Run(ctx context.Context, queue <-chan RefResult) <-chan Result {
	clk := a.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	out := make(chan Result)
	schedIn := make(chan scheduler.Request)
	requeue := make(chan scheduler.Request, requeueBufferSize)

	// outstanding counts keys anywhere in the pipeline: registered before
	// a request enters the scheduler, corrected down when the scheduler
	// merges it into an existing entry, and released once the attempt's
	// Result has been emitted. The merge loop may close the scheduler
	// input only when the count is zero, which also implies no requeue is
	// parked in the buffer.
	var outstanding atomic.Int64
	maybeDone := make(chan struct{}, 1)
	nudge := func() {
		select {
		case maybeDone <- struct{}{}:
		default:
		}
	}

	sched := scheduler.New(scheduler.Options{
		Clock: clk,
		Coalesced: func(core.ObjectRef) {
			outstanding.Add(-1)
			nudge()
		},
	})
	results := newRunner(a.launch).run(ctx, sched.Run(ctx, schedIn))

	// Merge external triggers and internal requeues into the scheduler.
	go func() {
		defer close(schedIn)
		for {
			if queue == nil && outstanding.Load() == 0 {
				return
			}
			select {
			case qr, ok := <-queue:
				if !ok {
					queue = nil
					continue
				}
				if qr.Err != nil {
					select {
					case out <- Result{Err: &status.QueueError{Err: qr.Err}}:
					case <-ctx.Done():
						return
					}
					continue
				}
				outstanding.Add(1)
				select {
				case schedIn <- scheduler.Request{Ref: qr.Ref, RunAt: clk.Now().Add(triggerDelay)}:
				case <-ctx.Done():
					return
				}
			case req := <-requeue:
				select {
				case schedIn <- req:
				case <-ctx.Done():
					return
				}
			case <-maybeDone:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Apply the error policy to each attempt, schedule requeues, and emit.
	go func() {
		defer close(out)
		for res := range results {
			action := res.Action
			if res.Err != nil {
				action = Action{}
				var recErr *status.ReconcilerError
				if errors.As(res.Err, &recErr) && a.ErrorPolicy != nil {
					action = a.ErrorPolicy(recErr.Err, a.Context)
				}
			}
			if action.RequeueAfter > 0 {
				outstanding.Add(1)
				select {
				case requeue <- scheduler.Request{Ref: res.Ref, RunAt: clk.Now().Add(action.RequeueAfter)}:
				case <-ctx.Done():
					return
				}
			}
			if res.Err == nil {
				res.Action = action
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			outstanding.Add(-1)
			nudge()
		}
	}()

	return out
}

// launch runs one attempt: resolve the key against the store and invoke
// the reconciler. A key that vanished from the store completes immediately
// as ObjectNotFound and is not requeued.
func (a *Applier) launch(ctx context.Context, ref core.ObjectRef) (res Result) {
	res = Result{Ref: ref}
	obj, found := a.Store.Get(ref)
	if !found {
		res.Err = &status.ObjectNotFoundError{Ref: ref}
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &status.ReconcilerError{Ref: ref, Err: fmt.Errorf("reconciler panicked: %v", r)}
		}
	}()
	action, err := a.Reconciler(ctx, obj, a.Context)
	if err != nil {
		res.Err = &status.ReconcilerError{Ref: ref, Err: err}
		return res
	}
	res.Action = action
	return res
}
