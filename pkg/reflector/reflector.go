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

	"kpt.dev/converge/pkg/watch"
)

// Reflector applies every event from in to the writer and forwards it
// unchanged downstream. The returned channel closes when in closes or ctx
// is cancelled.
//
// Error items pass through without touching the store.
func Reflector(ctx context.Context, writer *Writer, in <-chan watch.Result) <-chan watch.Result {
	out := make(chan watch.Result)
	go func() {
		defer close(out)
		for {
			select {
			case r, ok := <-in:
				if !ok {
					return
				}
				if r.Err == nil {
					writer.Apply(r.Event)
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
