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

package watch

import (
	"context"
	"errors"
	"io"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"kpt.dev/converge/pkg/client"
	"kpt.dev/converge/pkg/status"
	"kpt.dev/converge/pkg/util"
)

// ListerWatcher is the slice of the bound request builder the watcher
// needs. *client.Api implements it.
type ListerWatcher interface {
	List(ctx context.Context, opts client.ListOptions) (*unstructured.UnstructuredList, error)
	Watch(ctx context.Context, opts client.ListOptions, resourceVersion string) (client.WatchStream, error)
}

// defaultPageSize is the list page size used when the caller sets none.
const defaultPageSize = 500

// errDesync forces a relist from scratch.
var errDesync = errors.New("resource version expired")

// Watcher drives the list+watch state machine for one collection.
//
// With no known resourceVersion the watcher performs a paginated list,
// emits a single Restarted snapshot, and starts watching at the list's
// resourceVersion. Watch events advance the resourceVersion; server
// timeouts re-enter the watch at the current version; an expired version
// forces a fresh list. Transient failures are emitted as error Results and
// retried with backoff, so the stream only ends on context cancellation.
type Watcher struct {
	lw   ListerWatcher
	opts client.ListOptions

	clock   clock.Clock
	backoff wait.Backoff
}

// NewWatcher returns a Watcher over the collection addressed by lw.
func NewWatcher(lw ListerWatcher, opts client.ListOptions) *Watcher {
	return &Watcher{
		lw:      lw,
		opts:    opts,
		clock:   clock.RealClock{},
		backoff: util.WatchRetryBackoff(),
	}
}

// Run starts the watcher. The returned channel closes only when ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan Result {
	out := make(chan Result)
	go w.run(ctx, out)
	return out
}

func (w *Watcher) run(ctx context.Context, out chan<- Result) {
	defer close(out)
	backoff := util.CopyBackoff(w.backoff)
	resourceVersion := ""
	for ctx.Err() == nil {
		if resourceVersion == "" {
			snapshot, listRV, err := w.list(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !w.emit(ctx, out, Result{Err: &status.WatchError{Err: err}}) {
					return
				}
				if !w.sleep(ctx, backoff.Step()) {
					return
				}
				continue
			}
			backoff = util.CopyBackoff(w.backoff)
			if !w.emit(ctx, out, Result{Event: Event{Type: Restarted, Objects: snapshot}}) {
				return
			}
			resourceVersion = listRV
			continue
		}

		stream, err := w.lw.Watch(ctx, w.opts, resourceVersion)
		if err != nil {
			if status.IsGone(err) {
				klog.V(2).Infof("Resource version %s expired while connecting, relisting", resourceVersion)
				resourceVersion = ""
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if !w.emit(ctx, out, Result{Err: &status.WatchError{Err: err}}) {
				return
			}
			if !w.sleep(ctx, backoff.Step()) {
				return
			}
			continue
		}

		resourceVersion, err = w.consume(ctx, stream, resourceVersion, out)
		switch {
		case err == nil:
			// Clean end of stream (server timeout). Re-watch from the
			// current version.
			backoff = util.CopyBackoff(w.backoff)
		case errors.Is(err, errDesync):
			klog.V(2).Infof("Resource version expired during watch, relisting")
			resourceVersion = ""
		case ctx.Err() != nil:
			return
		default:
			if !w.emit(ctx, out, Result{Err: &status.WatchError{Err: err}}) {
				return
			}
			if !w.sleep(ctx, backoff.Step()) {
				return
			}
		}
	}
}

// list fetches the full collection page by page and returns the snapshot
// together with the list's resourceVersion. Partial page sets are never
// surfaced.
func (w *Watcher) list(ctx context.Context) ([]*unstructured.Unstructured, string, error) {
	opts := w.opts
	if opts.Limit == 0 {
		opts.Limit = defaultPageSize
	}
	opts.Continue = ""
	var snapshot []*unstructured.Unstructured
	for {
		page, err := w.lw.List(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		for i := range page.Items {
			snapshot = append(snapshot, &page.Items[i])
		}
		token := page.GetContinue()
		if token == "" {
			return snapshot, page.GetResourceVersion(), nil
		}
		opts.Continue = token
	}
}

// consume drains one watch stream, emitting events and advancing the
// resourceVersion. Returns the last good version, with errDesync when the
// server declared the version expired.
func (w *Watcher) consume(ctx context.Context, stream client.WatchStream, resourceVersion string, out chan<- Result) (string, error) {
	defer func() {
		if err := stream.Close(); err != nil {
			klog.V(4).Infof("Closing watch stream: %v", err)
		}
	}()
	for {
		frame, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return resourceVersion, nil
			}
			return resourceVersion, err
		}
		switch frame.Type {
		case client.Added, client.Modified:
			if !w.emit(ctx, out, Result{Event: Event{Type: Applied, Object: frame.Object}}) {
				return resourceVersion, ctx.Err()
			}
			resourceVersion = frame.Object.GetResourceVersion()
		case client.Deleted:
			if !w.emit(ctx, out, Result{Event: Event{Type: Deleted, Object: frame.Object}}) {
				return resourceVersion, ctx.Err()
			}
			resourceVersion = frame.Object.GetResourceVersion()
		case client.Bookmark:
			resourceVersion = frame.Object.GetResourceVersion()
		case client.Error:
			apiErr := status.FromStatus(frame.Status)
			if apiErr.IsGone() {
				return resourceVersion, errDesync
			}
			return resourceVersion, apiErr
		default:
			klog.Warningf("Skipping watch frame with unknown type %q", frame.Type)
		}
	}
}

func (w *Watcher) emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := w.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	}
}
