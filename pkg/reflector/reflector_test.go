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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/kinds"
	"kpt.dev/converge/pkg/watch"
)

func widget(name, resourceVersion string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("example.com/v1")
	obj.SetKind("Widget")
	obj.SetName(name)
	obj.SetNamespace("default")
	obj.SetResourceVersion(resourceVersion)
	return obj
}

func widgetKind() kinds.Kind {
	return kinds.New("example.com", "v1", "Widget", "widgets", kinds.NamespaceScope)
}

func applied(obj *unstructured.Unstructured) watch.Event {
	return watch.Event{Type: watch.Applied, Object: obj}
}

func deleted(obj *unstructured.Unstructured) watch.Event {
	return watch.Event{Type: watch.Deleted, Object: obj}
}

func restarted(objs ...*unstructured.Unstructured) watch.Event {
	return watch.Event{Type: watch.Restarted, Objects: objs}
}

func storeNames(s *Store) []string {
	var names []string
	for _, obj := range s.List() {
		names = append(names, obj.GetName())
	}
	return names
}

func TestWriterApply(t *testing.T) {
	kind := widgetKind()
	testCases := []struct {
		name      string
		events    []watch.Event
		wantNames []string
	}{
		{
			name:      "applied inserts",
			events:    []watch.Event{applied(widget("a", "1"))},
			wantNames: []string{"a"},
		},
		{
			name: "applied overwrites",
			events: []watch.Event{
				applied(widget("a", "1")),
				applied(widget("a", "2")),
			},
			wantNames: []string{"a"},
		},
		{
			name: "duplicate applied is idempotent",
			events: []watch.Event{
				applied(widget("a", "1")),
				applied(widget("a", "1")),
			},
			wantNames: []string{"a"},
		},
		{
			name: "deleted removes",
			events: []watch.Event{
				applied(widget("a", "1")),
				applied(widget("b", "2")),
				deleted(widget("a", "3")),
			},
			wantNames: []string{"b"},
		},
		{
			name: "restart replaces wholesale",
			events: []watch.Event{
				applied(widget("a", "1")),
				applied(widget("b", "2")),
				restarted(widget("b", "5"), widget("c", "6")),
			},
			wantNames: []string{"b", "c"},
		},
		{
			name: "restart to empty clears",
			events: []watch.Event{
				applied(widget("a", "1")),
				restarted(),
			},
			wantNames: nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			writer := NewWriter(kind)
			for _, e := range tc.events {
				writer.Apply(e)
			}
			if diff := cmp.Diff(tc.wantNames, storeNames(writer.Store())); diff != "" {
				t.Errorf("unexpected store contents (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreGetAfterDelete(t *testing.T) {
	kind := widgetKind()
	writer := NewWriter(kind)
	writer.Apply(applied(widget("a", "1")))
	writer.Apply(deleted(widget("a", "2")))

	if _, found := writer.Store().Get(core.NewRef(kind, "a").WithNamespace("default")); found {
		t.Error("deleted key must read as absent")
	}
}

func TestReflectorAppliesThenForwards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := NewWriter(widgetKind())
	in := make(chan watch.Result, 4)
	out := Reflector(ctx, writer, in)

	in <- watch.Result{Event: restarted(widget("a", "1"))}
	r := <-out
	if r.Event.Type != watch.Restarted {
		t.Fatalf("expected forwarded Restarted, got %+v", r)
	}
	// By the time an event is observable downstream, the store reflects it.
	if got := writer.Store().Len(); got != 1 {
		t.Errorf("store has %d objects, want 1", got)
	}

	watchErr := errors.New("transient")
	in <- watch.Result{Err: watchErr}
	r = <-out
	if !errors.Is(r.Err, watchErr) {
		t.Fatalf("expected forwarded error, got %+v", r)
	}
	if got := writer.Store().Len(); got != 1 {
		t.Errorf("error item must not mutate the store, got %d objects", got)
	}

	close(in)
	if _, ok := <-out; ok {
		t.Error("output must close when input closes")
	}
}

func TestFlattenApplied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan watch.Result, 4)
	in <- watch.Result{Event: restarted(widget("a", "1"), widget("b", "2"))}
	in <- watch.Result{Event: deleted(widget("a", "3"))}
	in <- watch.Result{Event: applied(widget("c", "4"))}
	close(in)

	var names []string
	for r := range FlattenApplied(ctx, in) {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		names = append(names, r.Object.GetName())
	}
	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("unexpected flattened objects (-want +got):\n%s", diff)
	}
}

func TestFlattenTouchedIncludesDeleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan watch.Result, 4)
	in <- watch.Result{Event: applied(widget("a", "1"))}
	in <- watch.Result{Event: deleted(widget("a", "2"))}
	close(in)

	var names []string
	for r := range FlattenTouched(ctx, in) {
		names = append(names, r.Object.GetName())
	}
	want := []string{"a", "a"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("unexpected touched objects (-want +got):\n%s", diff)
	}
}
