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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"kpt.dev/converge/pkg/kinds"
	"kpt.dev/converge/pkg/status"
)

// fakeInterface records requests and replies with scripted bodies.
type fakeInterface struct {
	requests []*Request
	body     []byte
	stream   string
	err      error
}

func (f *fakeInterface) Request(_ context.Context, req *Request) ([]byte, error) {
	f.requests = append(f.requests, req)
	return f.body, f.err
}

func (f *fakeInterface) Stream(_ context.Context, req *Request) (io.ReadCloser, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func TestApiList(t *testing.T) {
	fake := &fakeInterface{
		body: []byte(`{"apiVersion":"v1","kind":"ConfigMapList","metadata":{"resourceVersion":"42","continue":"tok"},"items":[{"apiVersion":"v1","kind":"ConfigMap","metadata":{"name":"a","namespace":"ns"}}]}`),
	}
	api := NewApi(fake, kinds.ConfigMap()).InNamespace("ns")

	list, err := api.List(context.Background(), ListOptions{LabelSelector: "app=x"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "a", list.Items[0].GetName())
	require.Equal(t, "42", list.GetResourceVersion())
	require.Equal(t, "tok", list.GetContinue())

	require.Len(t, fake.requests, 1)
	require.Equal(t, "/api/v1/namespaces/ns/configmaps", fake.requests[0].Path)
	require.Equal(t, "app=x", fake.requests[0].Query.Get("labelSelector"))
}

func TestApiGet(t *testing.T) {
	fake := &fakeInterface{
		body: []byte(`{"apiVersion":"v1","kind":"ConfigMap","metadata":{"name":"a","namespace":"ns","resourceVersion":"7"}}`),
	}
	api := NewApi(fake, kinds.ConfigMap()).InNamespace("ns")

	obj, err := api.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "a", obj.GetName())
	require.Equal(t, "7", obj.GetResourceVersion())
	require.Equal(t, "/api/v1/namespaces/ns/configmaps/a", fake.requests[0].Path)
}

func TestApiDeleteAcknowledgedWithStatus(t *testing.T) {
	fake := &fakeInterface{
		body: []byte(`{"kind":"Status","apiVersion":"v1","status":"Success"}`),
	}
	api := NewApi(fake, kinds.ConfigMap()).InNamespace("ns")

	obj, s, err := api.Delete(context.Background(), "a", DeleteOptions{})
	require.NoError(t, err)
	require.Nil(t, obj)
	require.NotNil(t, s)
	require.Equal(t, "Success", string(s.Status))
}

func TestApiSurfacesAPIErrors(t *testing.T) {
	fake := &fakeInterface{
		err: &status.APIStatusError{Code: 404, Reason: "NotFound", Message: "configmaps \"a\" not found"},
	}
	api := NewApi(fake, kinds.ConfigMap()).InNamespace("ns")

	_, err := api.Get(context.Background(), "a")
	require.Error(t, err)
	var apiErr *status.APIStatusError
	require.ErrorAs(t, err, &apiErr)
	require.EqualValues(t, 404, apiErr.Code)
}

func TestApiWatchDecodesFrames(t *testing.T) {
	fake := &fakeInterface{
		stream: `{"type":"ADDED","object":{"apiVersion":"v1","kind":"ConfigMap","metadata":{"name":"a","resourceVersion":"2"}}}` + "\n",
	}
	api := NewApi(fake, kinds.ConfigMap()).InNamespace("ns")

	stream, err := api.Watch(context.Background(), ListOptions{}, "1")
	require.NoError(t, err)
	defer func() { require.NoError(t, stream.Close()) }()

	frame, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, Added, frame.Type)
	require.Equal(t, "a", frame.Object.GetName())

	_, err = stream.Next()
	require.ErrorIs(t, err, io.EOF)

	require.Equal(t, "true", fake.requests[0].Query.Get("watch"))
	require.Equal(t, "1", fake.requests[0].Query.Get("resourceVersion"))
}
