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

// Package reflector keeps a local store in sync with a server-side
// collection by applying watch events.
package reflector

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/kinds"
	"kpt.dev/converge/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Store is the read view of a reflected collection, shared with
// reconcilers. It is safe for concurrent readers alongside its single
// Writer; readers always observe a consistent snapshot and never a torn
// restart.
//
// Insertion order is preserved, so List after a Restarted event returns
// objects in the server's list order.
type Store struct {
	mu      sync.RWMutex
	objects *orderedmap.OrderedMap[core.ObjectRef, client.Object]
}

// Get returns the latest observed object for ref. Deleted keys read as
// absent; there are no tombstones.
func (s *Store) Get(ref core.ObjectRef) (client.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects.Get(ref)
}

// List returns every object currently in the store, in insertion order.
func (s *Store) List() []client.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs := make([]client.Object, 0, s.objects.Len())
	for el := s.objects.Front(); el != nil; el = el.Next() {
		objs = append(objs, el.Value)
	}
	return objs
}

// Refs returns the key of every object currently in the store, in
// insertion order.
func (s *Store) Refs() []core.ObjectRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]core.ObjectRef, 0, s.objects.Len())
	for el := s.objects.Front(); el != nil; el = el.Next() {
		refs = append(refs, el.Key)
	}
	return refs
}

// Len returns the number of objects in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects.Len()
}

// Writer is the single mutator of a Store.
type Writer struct {
	kind  kinds.Kind
	store *Store
}

// NewWriter returns a Writer over a fresh empty Store for the given kind.
func NewWriter(kind kinds.Kind) *Writer {
	return &Writer{
		kind: kind,
		store: &Store{
			objects: orderedmap.NewOrderedMap[core.ObjectRef, client.Object](),
		},
	}
}

// Store returns the read view. The same Store is returned on every call, so
// it may be handed out before the reflector starts.
func (w *Writer) Store() *Store {
	return w.store
}

// Apply folds one watch event into the store.
//
// Applied upserts by the object's reference; Deleted removes the entry;
// Restarted replaces the contents wholesale so the store holds exactly the
// snapshot's keys afterwards. Applying a duplicate event is idempotent.
func (w *Writer) Apply(event watch.Event) {
	switch event.Type {
	case watch.Applied:
		ref := core.RefOf(w.kind, event.Object)
		w.store.mu.Lock()
		w.store.objects.Set(ref, event.Object)
		w.store.mu.Unlock()
	case watch.Deleted:
		ref := core.RefOf(w.kind, event.Object)
		w.store.mu.Lock()
		w.store.objects.Delete(ref)
		w.store.mu.Unlock()
	case watch.Restarted:
		snapshot := orderedmap.NewOrderedMap[core.ObjectRef, client.Object]()
		for _, obj := range event.Objects {
			snapshot.Set(core.RefOf(w.kind, obj), obj)
		}
		w.store.mu.Lock()
		w.store.objects = snapshot
		w.store.mu.Unlock()
	}
}
