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

// Package watch turns the API server's list+watch protocol into an infinite
// stream of change events with relist-on-desync recovery.
package watch

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// EventType discriminates Event.
type EventType string

const (
	// Applied means the object was created or modified.
	Applied EventType = "Applied"
	// Deleted means the object was removed; the event carries its final
	// state.
	Deleted EventType = "Deleted"
	// Restarted means downstream caches must be reinitialized from the
	// snapshot carried by the event.
	Restarted EventType = "Restarted"
)

// Event is one change notification.
type Event struct {
	Type EventType
	// Object is set for Applied and Deleted events.
	Object *unstructured.Unstructured
	// Objects is the full snapshot carried by a Restarted event.
	Objects []*unstructured.Unstructured
}

// Result is one item of the watcher output stream: an event or a transient
// error. Errors do not terminate the stream; the watcher keeps retrying.
type Result struct {
	Event Event
	Err   error
}
