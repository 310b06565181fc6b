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

package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// APIStatusError is a structured server error parsed from a JSON Status
// object, either from a non-2XX response body or from a watch ERROR frame.
type APIStatusError struct {
	Code    int32
	Reason  metav1.StatusReason
	Message string
}

// FromStatus converts a Status object into an APIStatusError.
func FromStatus(s *metav1.Status) *APIStatusError {
	return &APIStatusError{
		Code:    s.Code,
		Reason:  s.Reason,
		Message: s.Message,
	}
}

// FromRawStatus parses a JSON Status body into an APIStatusError. Returns
// false if the body is not a Status object.
func FromRawStatus(body []byte) (*APIStatusError, bool) {
	s := &metav1.Status{}
	if err := json.Unmarshal(body, s); err != nil || s.Kind != "Status" {
		return nil, false
	}
	return FromStatus(s), true
}

// Error implements error.
func (e *APIStatusError) Error() string {
	return fmt.Sprintf("api error (%d %s): %s", e.Code, e.Reason, e.Message)
}

// IsGone reports whether the error means the requested resourceVersion has
// expired and the client must relist. The structured reason is checked
// first; the 410 code is the fallback for servers that omit it.
func (e *APIStatusError) IsGone() bool {
	if e.Reason == metav1.StatusReasonExpired || e.Reason == metav1.StatusReasonGone {
		return true
	}
	return e.Code == http.StatusGone
}

// IsGone reports whether err carries an expired/gone API status.
func IsGone(err error) bool {
	var apiErr *APIStatusError
	return errors.As(err, &apiErr) && apiErr.IsGone()
}
