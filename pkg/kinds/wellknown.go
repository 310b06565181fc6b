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

package kinds

// ConfigMap returns the Kind for core/v1 ConfigMaps.
func ConfigMap() Kind {
	return Core("v1", "ConfigMap", "configmaps", NamespaceScope)
}

// Secret returns the Kind for core/v1 Secrets.
func Secret() Kind {
	return Core("v1", "Secret", "secrets", NamespaceScope)
}

// Pod returns the Kind for core/v1 Pods.
func Pod() Kind {
	return Core("v1", "Pod", "pods", NamespaceScope)
}

// Namespace returns the Kind for core/v1 Namespaces.
func Namespace() Kind {
	return Core("v1", "Namespace", "namespaces", ClusterScope)
}

// Node returns the Kind for core/v1 Nodes.
func Node() Kind {
	return Core("v1", "Node", "nodes", ClusterScope)
}

// Deployment returns the Kind for apps/v1 Deployments.
func Deployment() Kind {
	return New("apps", "v1", "Deployment", "deployments", NamespaceScope)
}
