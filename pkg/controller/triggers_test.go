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
	"testing"

	"github.com/google/go-cmp/cmp"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"kpt.dev/converge/pkg/core"
	"kpt.dev/converge/pkg/kinds"
)

func TestTriggerSelf(t *testing.T) {
	obj := widget("a")
	got := TriggerSelf(widgetKind())(obj)
	want := []core.ObjectRef{core.NewRef(widgetKind(), "a").WithNamespace("default")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected refs (-want +got):\n%s", diff)
	}
}

func TestTriggerOwners(t *testing.T) {
	fooKind := kinds.New("clux.dev", "v1", "Foo", "foos", kinds.NamespaceScope)

	obj := widget("child")
	obj.SetNamespace("n")
	obj.SetOwnerReferences([]metav1.OwnerReference{
		{APIVersion: "clux.dev/v1", Kind: "Foo", Name: "f1"},
		{APIVersion: "clux.dev/v1", Kind: "Bar", Name: "b1"},
		{APIVersion: "apps/v1", Kind: "Foo", Name: "f2"},
		{APIVersion: "clux.dev/v1", Kind: "Foo", Name: "f3"},
	})

	got := TriggerOwners(fooKind)(obj)
	want := []core.ObjectRef{
		{Kind: fooKind, Namespace: "n", Name: "f1"},
		{Kind: fooKind, Namespace: "n", Name: "f3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected owner refs (-want +got):\n%s", diff)
	}
}
