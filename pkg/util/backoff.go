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

package util

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// WatchRetryBackoff returns the backoff used between watch re-establishment
// attempts after a transport failure. Roughly 1s, 2s, 4s, ... capped at one
// minute, with no step limit so a flapping API server never strands the
// watcher.
func WatchRetryBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2,
		Jitter:   0.1,
		Steps:    intMax,
		Cap:      time.Minute,
	}
}

// BackoffWithDurationAndStepLimit returns backoff with a duration limit.
// Here a steps limit of 12 will return a max duration of about 68 minutes.
func BackoffWithDurationAndStepLimit(duration time.Duration, steps int) wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2,
		Jitter:   0.1,
		Steps:    steps,
		Cap:      duration,
	}
}

// intMax stands in for "unbounded" retry steps.
const intMax = int(^uint(0) >> 1)

// CopyBackoff duplicates a backoff so callers can step it without mutating
// the shared template.
func CopyBackoff(from wait.Backoff) wait.Backoff {
	return wait.Backoff{
		Duration: from.Duration,
		Factor:   from.Factor,
		Jitter:   from.Jitter,
		Steps:    from.Steps,
		Cap:      from.Cap,
	}
}
