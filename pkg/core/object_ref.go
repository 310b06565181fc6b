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

// Package core defines the identity model shared by every queue, map and
// cache in the runtime.
package core

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"kpt.dev/converge/pkg/kinds"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ObjectRef is a typed, optionally namespaced reference to an object.
//
// The Kind descriptor always rides along, so references to objects of
// different kinds never compare equal, even when name and namespace match.
// A reference to a cluster-scoped kind may carry a namespace; it is then a
// distinct reference from the bare one. ObjectRef is comparable and is the
// key type for the scheduler, the runner and the store.
type ObjectRef struct {
	Kind      kinds.Kind
	Namespace string
	Name      string
}

// NewRef returns a cluster-scoped (bare) reference to name.
func NewRef(kind kinds.Kind, name string) ObjectRef {
	return ObjectRef{Kind: kind, Name: name}
}

// RefOf returns the reference of obj, taking name and namespace from its
// metadata.
func RefOf(kind kinds.Kind, obj client.Object) ObjectRef {
	return ObjectRef{
		Kind:      kind,
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}

// RefFromOwner builds the reference to the owner named by an ownerReferences
// record on a child object. The child's namespace is used as the namespace
// hint for the owner, since owner references cannot cross namespaces.
//
// Returns false if the record's (apiVersion, kind) does not name ownerKind.
func RefFromOwner(ownerKind kinds.Kind, childNamespace string, owner metav1.OwnerReference) (ObjectRef, bool) {
	if !ownerKind.MatchesOwner(owner.APIVersion, owner.Kind) {
		return ObjectRef{}, false
	}
	return ObjectRef{
		Kind:      ownerKind,
		Namespace: childNamespace,
		Name:      owner.Name,
	}, true
}

// WithNamespace returns a copy of the reference scoped to namespace.
func (r ObjectRef) WithNamespace(namespace string) ObjectRef {
	r.Namespace = namespace
	return r
}

// String renders "Kind.version.group/name" with a ".namespace" suffix for
// namespaced references. The format is stable and usable as a log key.
func (r ObjectRef) String() string {
	s := fmt.Sprintf("%s/%s", r.Kind, r.Name)
	if r.Namespace != "" {
		s += "." + r.Namespace
	}
	return s
}
