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

// Package client defines the transport collaborator contracts of the
// runtime: request parameters, a request builder producing fully-specified
// request descriptors, and the Interface that executes them.
//
// The runtime never constructs HTTP connections itself. Implementations of
// Interface own connection pooling, authentication and retries; everything
// above it is transport-agnostic and is exercised in tests with in-memory
// fakes.
package client

import (
	"context"
	"io"
)

// Interface executes request descriptors against an API server.
//
// Implementations must return a *status.APIStatusError when the server
// responds with a non-2XX code carrying a JSON Status body, so callers can
// classify failures structurally (in particular 410 Gone during watches).
type Interface interface {
	// Request performs req and returns the full response body.
	Request(ctx context.Context, req *Request) ([]byte, error)

	// Stream performs req and returns the raw response body stream. Used
	// for watches and log streaming. The caller owns the closer.
	Stream(ctx context.Context, req *Request) (io.ReadCloser, error)
}
