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

package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"kpt.dev/converge/pkg/kinds"
)

// Request is a fully-specified API server request descriptor. It carries no
// transport state; an Interface implementation turns it into an HTTP call.
type Request struct {
	Verb        string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
}

// Resource builds Requests for one kind within one scope (cluster-wide or a
// single namespace).
type Resource struct {
	kind      kinds.Kind
	namespace string
}

// NewResource returns a builder addressing kind across the whole cluster.
func NewResource(kind kinds.Kind) Resource {
	return Resource{kind: kind}
}

// InNamespace returns a builder addressing kind within namespace.
func (r Resource) InNamespace(namespace string) Resource {
	r.namespace = namespace
	return r
}

// Kind returns the kind the builder addresses.
func (r Resource) Kind() kinds.Kind {
	return r.kind
}

// Namespace returns the namespace the builder is bound to, empty for
// cluster-wide scope.
func (r Resource) Namespace() string {
	return r.namespace
}

// URL returns the request path for the collection, an object, or an object's
// subresource. Shapes:
//
//	/api/{version}/{plural}
//	/apis/{group}/{version}/{plural}
//	.../namespaces/{namespace}/{plural}
//	.../{plural}/{name}
//	.../{plural}/{name}/{subresource}
func (r Resource) URL(name, subresource string) string {
	var p string
	if r.kind.Group == "" {
		p = path.Join("/api", r.kind.Version)
	} else {
		p = path.Join("/apis", r.kind.Group, r.kind.Version)
	}
	if r.namespace != "" {
		p = path.Join(p, "namespaces", r.namespace)
	}
	p = path.Join(p, r.kind.Plural)
	if name != "" {
		p = path.Join(p, name)
	}
	if subresource != "" {
		p = path.Join(p, subresource)
	}
	return p
}

// List returns a request for one page of the collection.
func (r Resource) List(opts ListOptions) *Request {
	return &Request{
		Verb:  http.MethodGet,
		Path:  r.URL("", ""),
		Query: opts.Query(),
	}
}

// Watch returns a long-poll watch request starting at resourceVersion.
// Pagination options do not apply to watches and are dropped.
func (r Resource) Watch(opts ListOptions, resourceVersion string) *Request {
	opts.Limit = 0
	opts.Continue = ""
	q := opts.Query()
	q.Set("watch", "true")
	q.Set("allowWatchBookmarks", "true")
	q.Set("resourceVersion", resourceVersion)
	return &Request{
		Verb:  http.MethodGet,
		Path:  r.URL("", ""),
		Query: q,
	}
}

// Get returns a request for a single object.
func (r Resource) Get(name string) *Request {
	return &Request{
		Verb: http.MethodGet,
		Path: r.URL(name, ""),
	}
}

// Create returns a request creating the object serialized in body.
func (r Resource) Create(opts PostOptions, body []byte) *Request {
	return &Request{
		Verb:        http.MethodPost,
		Path:        r.URL("", ""),
		Query:       opts.Query(),
		ContentType: "application/json",
		Body:        body,
	}
}

// Replace returns a request replacing the named object with body. The body
// must carry the object's current resourceVersion.
func (r Resource) Replace(name string, opts PostOptions, body []byte) *Request {
	return &Request{
		Verb:        http.MethodPut,
		Path:        r.URL(name, ""),
		Query:       opts.Query(),
		ContentType: "application/json",
		Body:        body,
	}
}

// Patch returns a request patching the named object.
func (r Resource) Patch(name string, opts PatchOptions, patch []byte) (*Request, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Request{
		Verb:        http.MethodPatch,
		Path:        r.URL(name, ""),
		Query:       opts.Query(),
		ContentType: string(opts.strategy()),
		Body:        patch,
	}, nil
}

// Delete returns a request deleting the named object. Options travel in the
// request body, matching the server's DeleteOptions schema.
func (r Resource) Delete(name string, opts DeleteOptions) (*Request, error) {
	body, err := deleteBody(opts)
	if err != nil {
		return nil, err
	}
	return &Request{
		Verb:        http.MethodDelete,
		Path:        r.URL(name, ""),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// DeleteCollection returns a request deleting every object selected by
// lopts.
func (r Resource) DeleteCollection(opts DeleteOptions, lopts ListOptions) (*Request, error) {
	body, err := deleteBody(opts)
	if err != nil {
		return nil, err
	}
	return &Request{
		Verb:        http.MethodDelete,
		Path:        r.URL("", ""),
		Query:       lopts.Query(),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// GetSubresource returns a request for the named object's subresource.
func (r Resource) GetSubresource(subresource, name string) *Request {
	return &Request{
		Verb: http.MethodGet,
		Path: r.URL(name, subresource),
	}
}

// ReplaceSubresource returns a request replacing the named object's
// subresource with body.
func (r Resource) ReplaceSubresource(subresource, name string, opts PostOptions, body []byte) *Request {
	return &Request{
		Verb:        http.MethodPut,
		Path:        r.URL(name, subresource),
		Query:       opts.Query(),
		ContentType: "application/json",
		Body:        body,
	}
}

// PatchSubresource returns a request patching the named object's
// subresource.
func (r Resource) PatchSubresource(subresource, name string, opts PatchOptions, patch []byte) (*Request, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Request{
		Verb:        http.MethodPatch,
		Path:        r.URL(name, subresource),
		Query:       opts.Query(),
		ContentType: string(opts.strategy()),
		Body:        patch,
	}, nil
}

// GetStatus returns a request for the named object's status subresource.
func (r Resource) GetStatus(name string) *Request {
	return r.GetSubresource("status", name)
}

// ReplaceStatus returns a request replacing the named object's status.
func (r Resource) ReplaceStatus(name string, opts PostOptions, body []byte) *Request {
	return r.ReplaceSubresource("status", name, opts, body)
}

// PatchStatus returns a request patching the named object's status.
func (r Resource) PatchStatus(name string, opts PatchOptions, patch []byte) (*Request, error) {
	return r.PatchSubresource("status", name, opts, patch)
}

// GetScale returns a request for the named object's scale subresource.
func (r Resource) GetScale(name string) *Request {
	return r.GetSubresource("scale", name)
}

// ReplaceScale returns a request replacing the named object's scale.
func (r Resource) ReplaceScale(name string, opts PostOptions, body []byte) *Request {
	return r.ReplaceSubresource("scale", name, opts, body)
}

// PatchScale returns a request patching the named object's scale.
func (r Resource) PatchScale(name string, opts PatchOptions, patch []byte) (*Request, error) {
	return r.PatchSubresource("scale", name, opts, patch)
}

// Logs returns a request streaming the named object's logs.
func (r Resource) Logs(name string, opts LogOptions) *Request {
	return &Request{
		Verb:  http.MethodGet,
		Path:  r.URL(name, "log"),
		Query: opts.Query(),
	}
}

// Evict returns a request submitting an Eviction for the named object.
func (r Resource) Evict(name string, opts EvictOptions) (*Request, error) {
	dopts, err := deleteBody(opts.Delete)
	if err != nil {
		return nil, err
	}
	eviction := map[string]interface{}{
		"apiVersion": "policy/v1",
		"kind":       "Eviction",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": r.namespace,
		},
		"deleteOptions": json.RawMessage(dopts),
	}
	body, err := json.Marshal(eviction)
	if err != nil {
		return nil, fmt.Errorf("encoding eviction: %w", err)
	}
	return &Request{
		Verb:        http.MethodPost,
		Path:        r.URL(name, "eviction"),
		Query:       opts.Post.Query(),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// Exec returns the upgradable request descriptor for the exec subresource.
// Executing it requires a transport that speaks the stream protocol.
func (r Resource) Exec(name string, opts ExecOptions) *Request {
	return &Request{
		Verb:  http.MethodGet,
		Path:  r.URL(name, "exec"),
		Query: opts.Query(),
	}
}

// Attach returns the upgradable request descriptor for the attach
// subresource.
func (r Resource) Attach(name string, opts AttachOptions) *Request {
	return &Request{
		Verb:  http.MethodGet,
		Path:  r.URL(name, "attach"),
		Query: opts.Query(),
	}
}

func deleteBody(opts DeleteOptions) ([]byte, error) {
	body := struct {
		APIVersion         string             `json:"apiVersion"`
		Kind               string             `json:"kind"`
		DryRun             []string           `json:"dryRun,omitempty"`
		GracePeriodSeconds *int64             `json:"gracePeriodSeconds,omitempty"`
		PropagationPolicy  *PropagationPolicy `json:"propagationPolicy,omitempty"`
		Preconditions      *Preconditions     `json:"preconditions,omitempty"`
	}{
		APIVersion:         "v1",
		Kind:               "DeleteOptions",
		GracePeriodSeconds: opts.GracePeriodSeconds,
		PropagationPolicy:  opts.PropagationPolicy,
		Preconditions:      opts.Preconditions,
	}
	if opts.DryRun {
		body.DryRun = []string{"All"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding delete options: %w", err)
	}
	return b, nil
}
