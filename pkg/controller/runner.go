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

	"kpt.dev/converge/pkg/core"
)

// launchFunc runs one reconciliation attempt for ref and reports its
// outcome.
type launchFunc func(ctx context.Context, ref core.ObjectRef) Result

// runner is the per-key single-flight executor.
//
// While a launch for a key is unfinished, further firings of that key set a
// pending flag instead of starting a second launch; the key relaunches once
// when the current attempt completes. The scheduler has already coalesced
// bursts, so last-writer-wins on the flag loses nothing. Keys with
// different identities run in parallel.
type runner struct {
	launch launchFunc
}

func newRunner(launch launchFunc) *runner {
	return &runner{launch: launch}
}

// inflight tracks one running launch.
type inflight struct {
	pending bool
}

// run starts the executor. The output carries exactly one Result per
// completed launch and closes once in is closed and every launch has
// completed. Cancelling ctx stops in-flight launches via their context and
// emits nothing further for them.
func (r *runner) run(ctx context.Context, in <-chan core.ObjectRef) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		running := map[core.ObjectRef]*inflight{}
		done := make(chan Result)
		start := func(ref core.ObjectRef) {
			go func() {
				res := r.launch(ctx, ref)
				select {
				case done <- res:
				case <-ctx.Done():
				}
			}()
		}
		for {
			if in == nil && len(running) == 0 {
				return
			}
			select {
			case ref, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				if fl, busy := running[ref]; busy {
					fl.pending = true
					continue
				}
				running[ref] = &inflight{}
				start(ref)
			case res := <-done:
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				fl := running[res.Ref]
				if fl != nil && fl.pending {
					fl.pending = false
					start(res.Ref)
				} else {
					delete(running, res.Ref)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
