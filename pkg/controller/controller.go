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

package controller

import (
	"context"
	"sync"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"kpt.dev/converge/pkg/client"
	"kpt.dev/converge/pkg/pubsub"
	"kpt.dev/converge/pkg/reflector"
	"kpt.dev/converge/pkg/watch"
)

// source is one trigger feed: a watcher plus the mapper deriving keys from
// its objects. The primary source also maintains the store.
type source struct {
	lw      watch.ListerWatcher
	opts    client.ListOptions
	mapper  Mapper
	primary bool
}

// notifyConfig configures optional Pub/Sub outcome notifications.
type notifyConfig struct {
	projectID   string
	topic       string
	clusterName string
}

// Controller composes one primary watch with any number of secondary
// (owned or related) watches, and runs a reconciler over the merged
// trigger stream.
//
//	results := controller.New(fooApi, client.ListOptions{}).
//		Owns(configMapApi, client.ListOptions{}).
//		Run(ctx, reconcile, errorPolicy, controller.NewContext(state))
//	for res := range results {
//		...
//	}
type Controller struct {
	kindAPI *client.Api
	writer  *reflector.Writer
	sources []source
	notify  *notifyConfig
	clock   clock.Clock
}

// New returns a Controller reconciling the kind served by api, restricted
// by opts. The primary watch feeds the store and triggers objects for
// themselves.
func New(api *client.Api, opts client.ListOptions) *Controller {
	c := &Controller{
		kindAPI: api,
		writer:  reflector.NewWriter(api.Kind()),
		clock:   clock.RealClock{},
	}
	c.sources = append(c.sources, source{
		lw:      api,
		opts:    opts,
		mapper:  TriggerSelf(api.Kind()),
		primary: true,
	})
	return c
}

// Owns watches children served by api whose ownerReferences point back at
// the primary kind, retriggering the owner on any child change or removal.
func (c *Controller) Owns(api *client.Api, opts client.ListOptions) *Controller {
	return c.Watches(api, opts, TriggerOwners(c.kindAPI.Kind()))
}

// Watches watches objects served by api and derives primary keys with a
// caller-supplied mapper.
func (c *Controller) Watches(api *client.Api, opts client.ListOptions, mapper Mapper) *Controller {
	c.sources = append(c.sources, source{lw: api, opts: opts, mapper: mapper})
	return c
}

// WithNotifications publishes one Pub/Sub message per reconciliation
// attempt to the given project and topic.
func (c *Controller) WithNotifications(projectID, topic, clusterName string) *Controller {
	c.notify = &notifyConfig{projectID: projectID, topic: topic, clusterName: clusterName}
	return c
}

// WithClock overrides the time source for trigger and requeue due times.
func (c *Controller) WithClock(clk clock.Clock) *Controller {
	c.clock = clk
	return c
}

// Store returns the read view of the primary cache, for handing to the
// reconciler out of band. It is valid before Run and fills on the first
// list.
func (c *Controller) Store() *reflector.Store {
	return c.writer.Store()
}

// Run merges every source into one trigger queue and starts the applier.
// The returned stream yields one Result per reconciliation attempt and
// closes when ctx is cancelled.
func (c *Controller) Run(ctx context.Context, reconciler Reconciler, errorPolicy ErrorPolicy, cctx *Context) <-chan Result {
	queue := make(chan RefResult)
	var wg sync.WaitGroup
	for _, src := range c.sources {
		events := watch.NewWatcher(src.lw, src.opts).Run(ctx)
		var objects <-chan reflector.ObjectResult
		if src.primary {
			// The primary watch maintains the store; only applied objects
			// trigger, deletions surface as ObjectNotFound when a pending
			// trigger fires.
			objects = reflector.FlattenApplied(ctx, reflector.Reflector(ctx, c.writer, events))
		} else {
			// Secondary watches trigger on deletions too, so owners see
			// removed children.
			objects = reflector.FlattenTouched(ctx, events)
		}
		wg.Add(1)
		go func(mapper Mapper, objects <-chan reflector.ObjectResult) {
			defer wg.Done()
			for r := range objects {
				if r.Err != nil {
					select {
					case queue <- RefResult{Err: r.Err}:
					case <-ctx.Done():
						return
					}
					continue
				}
				for _, ref := range mapper(r.Object) {
					select {
					case queue <- RefResult{Ref: ref}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src.mapper, objects)
	}
	go func() {
		wg.Wait()
		close(queue)
	}()

	applier := &Applier{
		Reconciler:  reconciler,
		ErrorPolicy: errorPolicy,
		Context:     cctx,
		Store:       c.writer.Store(),
		Clock:       c.clock,
	}
	results := applier.Run(ctx, queue)
	if c.notify != nil {
		results = c.publishResults(ctx, results)
	}
	return results
}

// publishResults tees the result stream into Pub/Sub notifications.
// Publish failures are logged and never disturb the stream.
func (c *Controller) publishResults(ctx context.Context, in <-chan Result) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		for res := range in {
			msg := pubsub.Message{
				ProjectID:   c.notify.projectID,
				ClusterName: c.notify.clusterName,
				Topic:       c.notify.topic,
				Status:      pubsub.ReconcileSucceeded,
			}
			if res.Err != nil {
				msg.Status = pubsub.ReconcileFailed
				msg.Error = res.Err.Error()
			} else {
				msg.Object = res.Ref.String()
			}
			if err := pubsub.Publish(ctx, c.notify.projectID, c.notify.topic, msg); err != nil {
				klog.Warningf("Failed to publish reconcile notification: %v", err)
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
