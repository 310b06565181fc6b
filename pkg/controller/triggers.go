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
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/kinds"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Mapper maps a changed object to the keys that should be reconciled
// because of it. Mappers are pure and may return no keys at all.
type Mapper func(obj client.Object) []core.ObjectRef

// TriggerSelf maps an object to its own reference.
func TriggerSelf(kind kinds.Kind) Mapper {
	return func(obj client.Object) []core.ObjectRef {
		return []core.ObjectRef{core.RefOf(kind, obj)}
	}
}

// TriggerOwners maps a child object to every ownerReferences record that
// names ownerKind, scoped to the child's namespace. Used so changes to
// owned children retrigger their parents.
func TriggerOwners(ownerKind kinds.Kind) Mapper {
	return func(obj client.Object) []core.ObjectRef {
		var refs []core.ObjectRef
		for _, owner := range obj.GetOwnerReferences() {
			if ref, ok := core.RefFromOwner(ownerKind, obj.GetNamespace(), owner); ok {
				refs = append(refs, ref)
			}
		}
		return refs
	}
}
