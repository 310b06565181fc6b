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

// Package pubsub publishes reconcile-outcome notifications to Cloud
// Pub/Sub for operators that track convergence externally.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"k8s.io/klog/v2"
)

// Status classifies one reconciliation attempt.
type Status string

const (
	// ReconcileSucceeded means the attempt completed without error.
	ReconcileSucceeded Status = "reconcileSucceeded"
	// ReconcileFailed means the attempt returned an error.
	ReconcileFailed Status = "reconcileFailed"
)

// Message is the JSON payload published per reconciliation attempt.
type Message struct {
	ProjectID   string `json:"projectID"`
	ClusterName string `json:"clusterName"`
	Topic       string `json:"topic"`
	Object      string `json:"object,omitempty"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Publish publishes a JSON message to a topic in the provided project
func Publish(ctx context.Context, projectID, topicID string, msg Message) error {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("pubsub: NewClient: %w", err)
	}
	defer client.Close()

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %v", err)
	}
	t := client.Topic(topicID)
	result := t.Publish(ctx, &pubsub.Message{
		Data: b,
	})
	// Block until the result is returned and a server-generated
	// ID is returned for the published message.
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("pubsub: result.Get: %w", err)
	}
	klog.V(3).Infof("Published a message; msg ID: %v", id)
	return nil
}
