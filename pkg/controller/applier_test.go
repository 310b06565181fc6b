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
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/kinds"
	"kpt.dev/converge/pkg/reflector"
	"kpt.dev/converge/pkg/status"
	"kpt.dev/converge/pkg/watch"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

func widgetKind() kinds.Kind {
	return kinds.New("example.com", "v1", "Widget", "widgets", kinds.NamespaceScope)
}

func widget(name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("example.com/v1")
	obj.SetKind("Widget")
	obj.SetName(name)
	obj.SetNamespace("default")
	obj.SetResourceVersion("1")
	return obj
}

func seededStore(t *testing.T, objs ...*unstructured.Unstructured) *reflector.Store {
	t.Helper()
	writer := reflector.NewWriter(widgetKind())
	var snapshot []*unstructured.Unstructured
	snapshot = append(snapshot, objs...)
	writer.Apply(watch.Event{Type: watch.Restarted, Objects: snapshot})
	return writer.Store()
}

func awaitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-results:
		if !ok {
			t.Fatal("result stream closed unexpectedly")
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
	return Result{}
}

func TestApplierReconcileAndRequeue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ref := core.NewRef(widgetKind(), "a").WithNamespace("default")
	var attempts int32
	a := &Applier{
		Reconciler: func(_ context.Context, obj ctrlclient.Object, _ *Context) (Action, error) {
			atomic.AddInt32(&attempts, 1)
			if obj.GetName() != "a" {
				t.Errorf("reconciler got object %q, want a", obj.GetName())
			}
			return Requeue(30 * time.Millisecond), nil
		},
		Store: seededStore(t, widget("a")),
	}

	queue := make(chan RefResult, 1)
	queue <- RefResult{Ref: ref}
	results := a.Run(ctx, queue)

	first := awaitResult(t, results)
	if first.Err != nil || first.Ref != ref {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Action.RequeueAfter != 30*time.Millisecond {
		t.Errorf("got action %+v, want 30ms requeue", first.Action)
	}

	// The requeue fires a second attempt without any external trigger.
	start := time.Now()
	second := awaitResult(t, results)
	if second.Err != nil || second.Ref != ref {
		t.Fatalf("unexpected second result: %+v", second)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("requeue fired after %v, want roughly 30ms", elapsed)
	}
	if atomic.LoadInt32(&attempts) < 2 {
		t.Errorf("got %d attempts, want at least 2", attempts)
	}
}

func TestApplierObjectNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ref := core.NewRef(widgetKind(), "missing").WithNamespace("default")
	a := &Applier{
		Reconciler: func(context.Context, ctrlclient.Object, *Context) (Action, error) {
			t.Error("reconciler must not run for a missing object")
			return Action{}, nil
		},
		Store: seededStore(t),
	}

	queue := make(chan RefResult, 1)
	queue <- RefResult{Ref: ref}
	results := a.Run(ctx, queue)

	res := awaitResult(t, results)
	var notFound *status.ObjectNotFoundError
	if !errors.As(res.Err, &notFound) {
		t.Fatalf("got %+v, want ObjectNotFoundError", res)
	}
	if notFound.Ref != ref {
		t.Errorf("got ref %v, want %v", notFound.Ref, ref)
	}

	// Not-found results are not retried automatically.
	select {
	case res := <-results:
		t.Fatalf("unexpected extra result: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestApplierErrorPolicy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ref := core.NewRef(widgetKind(), "a").WithNamespace("default")
	boom := errors.New("boom")
	var policyCalls int32
	a := &Applier{
		Reconciler: func(context.Context, ctrlclient.Object, *Context) (Action, error) {
			return Action{}, boom
		},
		ErrorPolicy: func(err error, _ *Context) Action {
			if !errors.Is(err, boom) {
				t.Errorf("error policy got %v, want the reconciler's error", err)
			}
			atomic.AddInt32(&policyCalls, 1)
			return Requeue(10 * time.Millisecond)
		},
		Store: seededStore(t, widget("a")),
	}

	queue := make(chan RefResult, 1)
	queue <- RefResult{Ref: ref}
	results := a.Run(ctx, queue)

	// Each attempt surfaces the reconciler error and the policy keeps the
	// retry loop going.
	for i := 0; i < 3; i++ {
		res := awaitResult(t, results)
		var recErr *status.ReconcilerError
		if !errors.As(res.Err, &recErr) {
			t.Fatalf("got %+v, want ReconcilerError", res)
		}
		if !errors.Is(recErr, boom) {
			t.Errorf("result error %v does not wrap the reconciler error", recErr)
		}
	}
	if atomic.LoadInt32(&policyCalls) < 3 {
		t.Errorf("got %d policy calls, want at least 3", policyCalls)
	}
}

func TestApplierQueueError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &Applier{
		Reconciler: func(context.Context, ctrlclient.Object, *Context) (Action, error) {
			return Action{}, nil
		},
		Store: seededStore(t),
	}

	upstream := errors.New("watch blew up")
	queue := make(chan RefResult, 1)
	queue <- RefResult{Err: upstream}
	results := a.Run(ctx, queue)

	res := awaitResult(t, results)
	var queueErr *status.QueueError
	if !errors.As(res.Err, &queueErr) {
		t.Fatalf("got %+v, want QueueError", res)
	}
	if !errors.Is(res.Err, upstream) {
		t.Errorf("queue error %v does not wrap the upstream error", res.Err)
	}
}

func TestApplierDrainsThenTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &Applier{
		Reconciler: func(context.Context, ctrlclient.Object, *Context) (Action, error) {
			return Action{}, nil
		},
		Store: seededStore(t, widget("a"), widget("b")),
	}

	queue := make(chan RefResult, 2)
	queue <- RefResult{Ref: core.NewRef(widgetKind(), "a").WithNamespace("default")}
	queue <- RefResult{Ref: core.NewRef(widgetKind(), "b").WithNamespace("default")}
	close(queue)
	results := a.Run(ctx, queue)

	count := 0
	for range results {
		count++
	}
	if count != 2 {
		t.Errorf("got %d results before termination, want 2", count)
	}
}

func TestApplierRecoversReconcilerPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &Applier{
		Reconciler: func(context.Context, ctrlclient.Object, *Context) (Action, error) {
			panic("unexpected state")
		},
		Store: seededStore(t, widget("a")),
	}

	queue := make(chan RefResult, 1)
	queue <- RefResult{Ref: core.NewRef(widgetKind(), "a").WithNamespace("default")}
	results := a.Run(ctx, queue)

	res := awaitResult(t, results)
	var recErr *status.ReconcilerError
	if !errors.As(res.Err, &recErr) {
		t.Fatalf("got %+v, want ReconcilerError", res)
	}
	if !strings.Contains(recErr.Error(), "panicked") {
		t.Errorf("error %v does not mention the panic", recErr)
	}
}
