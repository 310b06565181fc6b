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
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/multierr"
)

// ListOptions restricts a list or watch call.
type ListOptions struct {
	// LabelSelector restricts returned objects by their labels.
	LabelSelector string
	// FieldSelector restricts returned objects by their fields.
	FieldSelector string
	// TimeoutSeconds is a server-side hint for the duration of a list/watch
	// call regardless of activity. It is not a hard client deadline.
	TimeoutSeconds *int64
	// Limit is the maximum number of objects per page. Zero means no limit.
	Limit int64
	// Continue is the pagination token from a previous partial list result.
	Continue string
}

// Query encodes the options as request query parameters.
func (o ListOptions) Query() url.Values {
	q := url.Values{}
	if o.LabelSelector != "" {
		q.Set("labelSelector", o.LabelSelector)
	}
	if o.FieldSelector != "" {
		q.Set("fieldSelector", o.FieldSelector)
	}
	if o.TimeoutSeconds != nil {
		q.Set("timeoutSeconds", strconv.FormatInt(*o.TimeoutSeconds, 10))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.FormatInt(o.Limit, 10))
	}
	if o.Continue != "" {
		q.Set("continue", o.Continue)
	}
	return q
}

// PostOptions modifies a create or replace call.
type PostOptions struct {
	// DryRun processes the request without persisting it.
	DryRun bool
	// FieldManager names the actor for server-side field tracking.
	FieldManager string
}

// Query encodes the options as request query parameters.
func (o PostOptions) Query() url.Values {
	q := url.Values{}
	if o.DryRun {
		q.Set("dryRun", "All")
	}
	if o.FieldManager != "" {
		q.Set("fieldManager", o.FieldManager)
	}
	return q
}

// PatchStrategy selects the patch serialization understood by the server.
type PatchStrategy string

const (
	// JSONPatch is an RFC 6902 json-patch document.
	JSONPatch PatchStrategy = "application/json-patch+json"
	// MergePatch is an RFC 7386 merge-patch document.
	MergePatch PatchStrategy = "application/merge-patch+json"
	// StrategicMerge is the Kubernetes strategic-merge-patch format.
	StrategicMerge PatchStrategy = "application/strategic-merge-patch+json"
	// Apply is server-side apply.
	Apply PatchStrategy = "application/apply-patch+yaml"
)

// PatchOptions modifies a patch call.
type PatchOptions struct {
	// DryRun processes the request without persisting it.
	DryRun bool
	// Force overrides field-manager conflicts. Only valid with Apply.
	Force bool
	// FieldManager names the actor for server-side field tracking.
	// Required for Apply.
	FieldManager string
	// Strategy is the patch serialization. Defaults to StrategicMerge.
	Strategy PatchStrategy
}

// Validate rejects option combinations the server would refuse, reporting
// every violation at once.
func (o PatchOptions) Validate() error {
	var errs error
	if o.Force && o.strategy() != Apply {
		errs = multierr.Append(errs, fmt.Errorf("force is only permitted for server-side apply"))
	}
	if o.strategy() == Apply && o.FieldManager == "" {
		errs = multierr.Append(errs, fmt.Errorf("server-side apply requires a fieldManager"))
	}
	return errs
}

func (o PatchOptions) strategy() PatchStrategy {
	if o.Strategy == "" {
		return StrategicMerge
	}
	return o.Strategy
}

// Query encodes the options as request query parameters.
func (o PatchOptions) Query() url.Values {
	q := url.Values{}
	if o.DryRun {
		q.Set("dryRun", "All")
	}
	if o.Force {
		q.Set("force", "true")
	}
	if o.FieldManager != "" {
		q.Set("fieldManager", o.FieldManager)
	}
	return q
}

// PropagationPolicy decides how dependents of a deleted object are handled.
type PropagationPolicy string

const (
	// Orphan leaves dependents in place.
	Orphan PropagationPolicy = "Orphan"
	// Background deletes the object immediately and dependents afterwards.
	Background PropagationPolicy = "Background"
	// Foreground deletes dependents before the object itself.
	Foreground PropagationPolicy = "Foreground"
)

// Preconditions must hold for a delete to proceed.
type Preconditions struct {
	UID             *string `json:"uid,omitempty"`
	ResourceVersion *string `json:"resourceVersion,omitempty"`
}

// DeleteOptions modifies a delete or delete-collection call. It is sent as
// the request body, matching the server's DeleteOptions schema.
type DeleteOptions struct {
	// DryRun processes the request without persisting it.
	DryRun bool
	// GracePeriodSeconds overrides the kind's default deletion grace period.
	GracePeriodSeconds *int64
	// PropagationPolicy decides how dependents are deleted.
	PropagationPolicy *PropagationPolicy
	// Preconditions must hold for the delete to proceed.
	Preconditions *Preconditions
}

// LogOptions restricts a log subresource call.
type LogOptions struct {
	Container    string
	Follow       bool
	Previous     bool
	SinceSeconds *int64
	TailLines    *int64
	Timestamps   bool
	LimitBytes   *int64
}

// Query encodes the options as request query parameters.
func (o LogOptions) Query() url.Values {
	q := url.Values{}
	if o.Container != "" {
		q.Set("container", o.Container)
	}
	if o.Follow {
		q.Set("follow", "true")
	}
	if o.Previous {
		q.Set("previous", "true")
	}
	if o.SinceSeconds != nil {
		q.Set("sinceSeconds", strconv.FormatInt(*o.SinceSeconds, 10))
	}
	if o.TailLines != nil {
		q.Set("tailLines", strconv.FormatInt(*o.TailLines, 10))
	}
	if o.Timestamps {
		q.Set("timestamps", "true")
	}
	if o.LimitBytes != nil {
		q.Set("limitBytes", strconv.FormatInt(*o.LimitBytes, 10))
	}
	return q
}

// EvictOptions modifies an eviction subresource call.
type EvictOptions struct {
	Post   PostOptions
	Delete DeleteOptions
}

// AttachOptions selects the streams of an attach or exec subresource call.
type AttachOptions struct {
	Container string
	Stdin     bool
	Stdout    bool
	Stderr    bool
	TTY       bool
}

// Query encodes the options as request query parameters.
func (o AttachOptions) Query() url.Values {
	q := url.Values{}
	if o.Container != "" {
		q.Set("container", o.Container)
	}
	if o.Stdin {
		q.Set("stdin", "true")
	}
	if o.Stdout {
		q.Set("stdout", "true")
	}
	if o.Stderr {
		q.Set("stderr", "true")
	}
	if o.TTY {
		q.Set("tty", "true")
	}
	return q
}

// ExecOptions selects the command and streams of an exec subresource call.
type ExecOptions struct {
	AttachOptions
	Command []string
}

// Query encodes the options as request query parameters.
func (o ExecOptions) Query() url.Values {
	q := o.AttachOptions.Query()
	for _, c := range o.Command {
		q.Add("command", c)
	}
	return q
}
