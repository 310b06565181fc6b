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

// Package scheduler provides a per-key delay queue that coalesces repeated
// requeues of the same key into a single earliest-due firing.
package scheduler

import (
	"container/heap"
	"context"
	"time"

	"k8s.io/utils/clock"
	"kpt.dev/converge/pkg/core"
)

// Request asks for ref to be emitted at RunAt.
//
// While a key is pending, further requests for it merge into the existing
// entry: the effective due time is the earliest outstanding RunAt. Once a
// key fires, the next request starts a fresh entry.
type Request struct {
	Ref   core.ObjectRef
	RunAt time.Time
}

// Options configures a Scheduler.
type Options struct {
	// Clock is the time source. Defaults to the real clock.
	Clock clock.Clock
	// Coalesced, if set, is invoked for every request that merged into an
	// already-pending entry instead of creating a new one. The applier
	// uses this for work accounting.
	Coalesced func(core.ObjectRef)
}

// Scheduler is a timer-driven actor emitting keys as their due times
// arrive.
//
// Emission order is (due time, insertion order). Output delivery never
// blocks the input side: while the consumer is slow, new requests keep
// being accepted and coalesced, and entries that fell due in the meantime
// are served in order once the consumer resumes.
type Scheduler struct {
	clock     clock.Clock
	coalesced func(core.ObjectRef)
}

// New returns a Scheduler.
func New(opts Options) *Scheduler {
	c := opts.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	return &Scheduler{clock: c, coalesced: opts.Coalesced}
}

// entry is one pending key. Entries are immutable; coalescing to an
// earlier time replaces the entry while keeping its insertion sequence, so
// tie-breaking stays stable. Superseded copies linger in the heap and are
// skipped when popped.
type entry struct {
	ref core.ObjectRef
	due time.Time
	seq uint64
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Run starts the scheduler. The output channel closes once in is closed
// and every pending entry has fired, or when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, in <-chan Request) <-chan core.ObjectRef {
	out := make(chan core.ObjectRef)
	go s.run(ctx, in, out)
	return out
}

func (s *Scheduler) run(ctx context.Context, in <-chan Request, out chan<- core.ObjectRef) {
	defer close(out)

	pending := map[core.ObjectRef]*entry{}
	h := &entryHeap{}
	var seq uint64

	add := func(req Request) {
		existing, ok := pending[req.Ref]
		if ok {
			if s.coalesced != nil {
				s.coalesced(req.Ref)
			}
			if !req.RunAt.Before(existing.due) {
				return
			}
			// Keep the original sequence so the earliest-wins update does
			// not change tie-breaking order.
			e := &entry{ref: req.Ref, due: req.RunAt, seq: existing.seq}
			pending[req.Ref] = e
			heap.Push(h, e)
			return
		}
		e := &entry{ref: req.Ref, due: req.RunAt, seq: seq}
		seq++
		pending[req.Ref] = e
		heap.Push(h, e)
	}

	// emit delivers ref while continuing to accept input, so a stalled
	// consumer never stalls producers.
	emit := func(ref core.ObjectRef) bool {
		for {
			select {
			case out <- ref:
				return true
			case req, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				add(req)
			case <-ctx.Done():
				return false
			}
		}
	}

	for {
		// Serve everything that is due, skipping superseded heap copies.
		now := s.clock.Now()
		for h.Len() > 0 {
			top := (*h)[0]
			if pending[top.ref] != top {
				heap.Pop(h)
				continue
			}
			if top.due.After(now) {
				break
			}
			heap.Pop(h)
			delete(pending, top.ref)
			if !emit(top.ref) {
				return
			}
			now = s.clock.Now()
		}

		if in == nil && len(pending) == 0 {
			return
		}

		var timer clock.Timer
		var timerC <-chan time.Time
		if h.Len() > 0 {
			d := (*h)[0].due.Sub(now)
			if d < 0 {
				d = 0
			}
			timer = s.clock.NewTimer(d)
			timerC = timer.C()
		}

		select {
		case req, ok := <-in:
			if !ok {
				in = nil
			} else {
				add(req)
			}
		case <-timerC:
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
		if timer != nil {
			timer.Stop()
		}
	}
}
