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

package kinds

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Scope indicates whether instances of a kind live inside a namespace or at
// the cluster level.
type Scope string

const (
	// ClusterScope is the scope of kinds without a namespace.
	ClusterScope Scope = "Cluster"
	// NamespaceScope is the scope of namespaced kinds.
	NamespaceScope Scope = "Namespaced"
)

// Kind describes a resource type served by the API server.
//
// Group is empty for the legacy core group. Plural is the lowercase plural
// resource name used in request paths. Two Kinds are the same type iff all
// fields are equal, so Kind values are usable as map keys.
type Kind struct {
	Group   string
	Version string
	Kind    string
	Plural  string
	Scope   Scope
}

// New returns a Kind for the given coordinates.
func New(group, version, kind, plural string, scope Scope) Kind {
	return Kind{
		Group:   group,
		Version: version,
		Kind:    kind,
		Plural:  plural,
		Scope:   scope,
	}
}

// Core returns a Kind in the legacy core ("") group.
func Core(version, kind, plural string, scope Scope) Kind {
	return New("", version, kind, plural, scope)
}

// APIVersion returns the apiVersion string for the Kind, "group/version" for
// grouped kinds and bare "version" for the core group.
func (k Kind) APIVersion() string {
	if k.Group == "" {
		return k.Version
	}
	return k.Group + "/" + k.Version
}

// GroupVersionKind bridges to the apimachinery schema type.
func (k Kind) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: k.Group, Version: k.Version, Kind: k.Kind}
}

// GroupVersionResource bridges to the apimachinery schema type using the
// plural resource name.
func (k Kind) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: k.Group, Version: k.Version, Resource: k.Plural}
}

// Namespaced returns true if instances of the Kind live in a namespace.
func (k Kind) Namespaced() bool {
	return k.Scope == NamespaceScope
}

// Empty returns true for the zero Kind.
func (k Kind) Empty() bool {
	return k == Kind{}
}

// String renders the Kind as "Kind.version.group", matching the leading
// portion of an object reference.
func (k Kind) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Kind, k.Version, k.Group)
}

// MatchesOwner reports whether an ownerReference record with the given
// apiVersion and kind points at this Kind.
func (k Kind) MatchesOwner(apiVersion, kind string) bool {
	return apiVersion == k.APIVersion() && kind == k.Kind
}

// ParseAPIVersion splits an apiVersion string into group and version.
// A string without a slash is a core-group version.
func ParseAPIVersion(apiVersion string) (group, version string) {
	if i := strings.Index(apiVersion, "/"); i >= 0 {
		return apiVersion[:i], apiVersion[i+1:]
	}
	return "", apiVersion
}
