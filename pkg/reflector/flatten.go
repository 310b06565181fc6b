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

package reflector

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/converge/pkg/watch"
)

// ObjectResult is one item of a flattened event stream: a single object or
// a passed-through error.
type ObjectResult struct {
	Object *unstructured.Unstructured
	Err    error
}

// FlattenApplied narrows an event stream to applied objects: Deleted events
// are dropped and each Restarted snapshot is exploded into one item per
// object. Error items pass through.
func FlattenApplied(ctx context.Context, in <-chan watch.Result) <-chan ObjectResult {
	return flatten(ctx, in, false)
}

// FlattenTouched is FlattenApplied but also yields the final state of
// Deleted objects, so downstream triggers fire for removals too (e.g. to
// retrigger the owner of a removed child).
func FlattenTouched(ctx context.Context, in <-chan watch.Result) <-chan ObjectResult {
	return flatten(ctx, in, true)
}

func flatten(ctx context.Context, in <-chan watch.Result, includeDeleted bool) <-chan ObjectResult {
	out := make(chan ObjectResult)
	forward := func(r ObjectResult) bool {
		select {
		case out <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(out)
		for {
			select {
			case r, ok := <-in:
				if !ok {
					return
				}
				if r.Err != nil {
					if !forward(ObjectResult{Err: r.Err}) {
						return
					}
					continue
				}
				switch r.Event.Type {
				case watch.Applied:
					if !forward(ObjectResult{Object: r.Event.Object}) {
						return
					}
				case watch.Deleted:
					if includeDeleted && !forward(ObjectResult{Object: r.Event.Object}) {
						return
					}
				case watch.Restarted:
					for _, obj := range r.Event.Objects {
						if !forward(ObjectResult{Object: obj}) {
							return
						}
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
