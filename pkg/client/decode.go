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
	"bufio"
	"encoding/json"
	"io"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
)

// FrameType is the type tag of a watch stream frame.
type FrameType string

const (
	// Added announces a new object.
	Added FrameType = "ADDED"
	// Modified announces a changed object.
	Modified FrameType = "MODIFIED"
	// Deleted announces a removed object; the frame carries its final state.
	Deleted FrameType = "DELETED"
	// Bookmark advances the resourceVersion without an object change.
	Bookmark FrameType = "BOOKMARK"
	// Error carries a Status object describing a stream failure.
	Error FrameType = "ERROR"
)

// Frame is one decoded watch stream event.
type Frame struct {
	Type FrameType
	// Object is set for Added, Modified, Deleted and Bookmark frames.
	Object *unstructured.Unstructured
	// Status is set for Error frames.
	Status *metav1.Status
}

// WatchStream yields decoded frames from a single watch call.
type WatchStream interface {
	// Next blocks for the next frame. Returns io.EOF when the server ends
	// the stream (timeout or clean close).
	Next() (*Frame, error)
	// Close releases the underlying stream.
	Close() error
}

// WatchDecoder decodes the line-delimited JSON frames of a watch response
// body into Frames.
type WatchDecoder struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

var _ WatchStream = &WatchDecoder{}

// maxFrameSize bounds a single watch frame. Large objects (~1.5MiB etcd
// limit) plus envelope overhead fit comfortably.
const maxFrameSize = 16 * 1024 * 1024

// NewWatchDecoder wraps a watch response body.
func NewWatchDecoder(rc io.ReadCloser) *WatchDecoder {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &WatchDecoder{rc: rc, scanner: scanner}
}

// Next returns the next frame. Frames that fail to parse are logged and
// skipped rather than terminating the stream.
func (d *WatchDecoder) Next() (*Frame, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := decodeFrame(line)
		if err != nil {
			klog.Warningf("Skipping undecodable watch frame: %v", err)
			continue
		}
		return frame, nil
	}
}

// Close releases the underlying stream.
func (d *WatchDecoder) Close() error {
	return d.rc.Close()
}

func decodeFrame(line []byte) (*Frame, error) {
	var envelope struct {
		Type   FrameType       `json:"type"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}
	frame := &Frame{Type: envelope.Type}
	switch envelope.Type {
	case Added, Modified, Deleted, Bookmark:
		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(envelope.Object); err != nil {
			return nil, err
		}
		frame.Object = obj
	case Error:
		s := &metav1.Status{}
		if err := json.Unmarshal(envelope.Object, s); err != nil {
			return nil, err
		}
		frame.Status = s
	}
	return frame, nil
}
