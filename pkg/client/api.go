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
	"context"
	"encoding/json"
	"fmt"
	"io"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/converge/pkg/kinds"
)

// Api binds an Interface to one kind and scope, decoding responses into
// unstructured objects. It is the bound request builder handed to watchers
// and controllers.
type Api struct {
	client   Interface
	resource Resource
}

// NewApi returns an Api addressing kind across the whole cluster.
func NewApi(c Interface, kind kinds.Kind) *Api {
	return &Api{client: c, resource: NewResource(kind)}
}

// InNamespace returns an Api addressing the kind within namespace.
func (a *Api) InNamespace(namespace string) *Api {
	return &Api{client: a.client, resource: a.resource.InNamespace(namespace)}
}

// Kind returns the kind the Api addresses.
func (a *Api) Kind() kinds.Kind {
	return a.resource.Kind()
}

// List returns one page of the collection.
func (a *Api) List(ctx context.Context, opts ListOptions) (*unstructured.UnstructuredList, error) {
	body, err := a.client.Request(ctx, a.resource.List(opts))
	if err != nil {
		return nil, err
	}
	list := &unstructured.UnstructuredList{}
	if err := list.UnmarshalJSON(body); err != nil {
		return nil, fmt.Errorf("decoding %s list: %w", a.Kind(), err)
	}
	return list, nil
}

// Watch opens a watch stream starting at resourceVersion.
func (a *Api) Watch(ctx context.Context, opts ListOptions, resourceVersion string) (WatchStream, error) {
	rc, err := a.client.Stream(ctx, a.resource.Watch(opts, resourceVersion))
	if err != nil {
		return nil, err
	}
	return NewWatchDecoder(rc), nil
}

// Get returns a single object by name.
func (a *Api) Get(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	body, err := a.client.Request(ctx, a.resource.Get(name))
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// Create persists obj and returns the server's view of it.
func (a *Api) Create(ctx context.Context, opts PostOptions, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	body, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.Kind(), err)
	}
	resp, err := a.client.Request(ctx, a.resource.Create(opts, body))
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// Replace overwrites the named object with obj. The obj must carry the
// current resourceVersion for optimistic concurrency.
func (a *Api) Replace(ctx context.Context, name string, opts PostOptions, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	body, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.Kind(), err)
	}
	resp, err := a.client.Request(ctx, a.resource.Replace(name, opts, body))
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// Patch applies patch to the named object.
func (a *Api) Patch(ctx context.Context, name string, opts PatchOptions, patch []byte) (*unstructured.Unstructured, error) {
	req, err := a.resource.Patch(name, opts, patch)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// Delete removes the named object. When the server acknowledges the delete
// with a Status the returned object is nil and the Status is returned;
// otherwise the object's final state is returned.
func (a *Api) Delete(ctx context.Context, name string, opts DeleteOptions) (*unstructured.Unstructured, *metav1.Status, error) {
	req, err := a.resource.Delete(name, opts)
	if err != nil {
		return nil, nil, err
	}
	resp, err := a.client.Request(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return decodeObjectOrStatus(resp)
}

// DeleteCollection removes every object selected by lopts.
func (a *Api) DeleteCollection(ctx context.Context, opts DeleteOptions, lopts ListOptions) error {
	req, err := a.resource.DeleteCollection(opts, lopts)
	if err != nil {
		return err
	}
	_, err = a.client.Request(ctx, req)
	return err
}

// GetStatus returns the named object with its status subresource.
func (a *Api) GetStatus(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	body, err := a.client.Request(ctx, a.resource.GetStatus(name))
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// ReplaceStatus overwrites the named object's status subresource.
func (a *Api) ReplaceStatus(ctx context.Context, name string, opts PostOptions, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	body, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.Kind(), err)
	}
	resp, err := a.client.Request(ctx, a.resource.ReplaceStatus(name, opts, body))
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// PatchStatus applies patch to the named object's status subresource.
func (a *Api) PatchStatus(ctx context.Context, name string, opts PatchOptions, patch []byte) (*unstructured.Unstructured, error) {
	req, err := a.resource.PatchStatus(name, opts, patch)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// GetScale returns the named object's scale subresource.
func (a *Api) GetScale(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	body, err := a.client.Request(ctx, a.resource.GetScale(name))
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// ReplaceScale overwrites the named object's scale subresource.
func (a *Api) ReplaceScale(ctx context.Context, name string, opts PostOptions, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	body, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s scale: %w", a.Kind(), err)
	}
	resp, err := a.client.Request(ctx, a.resource.ReplaceScale(name, opts, body))
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// PatchScale applies patch to the named object's scale subresource.
func (a *Api) PatchScale(ctx context.Context, name string, opts PatchOptions, patch []byte) (*unstructured.Unstructured, error) {
	req, err := a.resource.PatchScale(name, opts, patch)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp)
}

// Logs returns the named object's logs as one string.
func (a *Api) Logs(ctx context.Context, name string, opts LogOptions) (string, error) {
	body, err := a.client.Request(ctx, a.resource.Logs(name, opts))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// LogStream streams the named object's logs. The caller owns the closer.
func (a *Api) LogStream(ctx context.Context, name string, opts LogOptions) (io.ReadCloser, error) {
	return a.client.Stream(ctx, a.resource.Logs(name, opts))
}

// Evict submits an Eviction for the named object.
func (a *Api) Evict(ctx context.Context, name string, opts EvictOptions) (*metav1.Status, error) {
	req, err := a.resource.Evict(name, opts)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	s := &metav1.Status{}
	if err := json.Unmarshal(resp, s); err != nil {
		return nil, fmt.Errorf("decoding eviction response: %w", err)
	}
	return s, nil
}

func decodeObject(body []byte) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(body); err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}
	return obj, nil
}

func decodeObjectOrStatus(body []byte) (*unstructured.Unstructured, *metav1.Status, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, nil, fmt.Errorf("decoding delete response: %w", err)
	}
	if probe.Kind == "Status" {
		s := &metav1.Status{}
		if err := json.Unmarshal(body, s); err != nil {
			return nil, nil, fmt.Errorf("decoding delete status: %w", err)
		}
		return nil, s, nil
	}
	obj, err := decodeObject(body)
	if err != nil {
		return nil, nil, err
	}
	return obj, nil, nil
}
