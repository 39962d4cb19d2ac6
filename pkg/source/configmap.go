package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// DocumentKey is the default key for the dependency document in a ConfigMap
	DocumentKey = "dependencies.json"
)

// ConfigMapFetcher fetches dependency documents from Kubernetes ConfigMaps
type ConfigMapFetcher struct {
	client    client.Reader
	namespace string
}

// NewConfigMapFetcher creates a ConfigMap fetcher. namespace is used for
// references that do not name one.
func NewConfigMapFetcher(k8sClient client.Reader, namespace string) *ConfigMapFetcher {
	return &ConfigMapFetcher{
		client:    k8sClient,
		namespace: namespace,
	}
}

// Type returns the fetcher type
func (f *ConfigMapFetcher) Type() string {
	return TypeConfigMap
}

// Fetch retrieves a document from a ConfigMap
// ref format: name, namespace/name, or either followed by :key
func (f *ConfigMapFetcher) Fetch(ctx context.Context, ref string) (*FetchResult, error) {
	namespace, name, key, err := parseConfigMapRef(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid ConfigMap reference: %w", err)
	}
	if namespace == "" {
		namespace = f.namespace
	}
	if namespace == "" {
		return nil, fmt.Errorf("invalid ConfigMap reference %q: no namespace given and no default set", ref)
	}

	cm := &corev1.ConfigMap{}
	if err := f.client.Get(ctx, client.ObjectKey{
		Namespace: namespace,
		Name:      name,
	}, cm); err != nil {
		return nil, fmt.Errorf("failed to get ConfigMap %s/%s: %w", namespace, name, err)
	}

	key, content, err := extractDocument(cm, key)
	if err != nil {
		return nil, fmt.Errorf("ConfigMap %s/%s: %w", namespace, name, err)
	}

	// Use resourceVersion as the digest for change detection
	digest := string(cm.UID) + ":" + cm.ResourceVersion + ":" + key

	return &FetchResult{
		Content: content,
		Digest:  digest,
		Source:  fmt.Sprintf("configmap://%s/%s/%s", namespace, name, key),
		Format:  FormatFromName(key),
	}, nil
}

// parseConfigMapRef parses a ConfigMap reference
// Supports formats:
//   - name
//   - namespace/name
//   - name:key
//   - namespace/name:key
func parseConfigMapRef(ref string) (namespace, name, key string, err error) {
	ref, key, _ = strings.Cut(ref, ":")

	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 1 {
		name = parts[0]
	} else {
		namespace, name = parts[0], parts[1]
	}

	if name == "" {
		return "", "", "", fmt.Errorf("ConfigMap name is empty in %q", ref)
	}
	return namespace, name, key, nil
}

// extractDocument picks the document out of a ConfigMap
// It looks for:
// 1. The explicitly requested key
// 2. A key named "dependencies.json"
// 3. The first key (sorted) with a known document extension
// 4. The only key, if there is exactly one
func extractDocument(cm *corev1.ConfigMap, key string) (string, []byte, error) {
	lookup := func(k string) ([]byte, bool) {
		if v, ok := cm.Data[k]; ok {
			return []byte(v), true
		}
		if v, ok := cm.BinaryData[k]; ok {
			return v, true
		}
		return nil, false
	}

	if key != "" {
		content, ok := lookup(key)
		if !ok {
			return "", nil, fmt.Errorf("key %s not found", key)
		}
		return key, content, nil
	}

	if content, ok := lookup(DocumentKey); ok {
		return DocumentKey, content, nil
	}

	keys := make([]string, 0, len(cm.Data)+len(cm.BinaryData))
	for k := range cm.Data {
		keys = append(keys, k)
	}
	for k := range cm.BinaryData {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("ConfigMap has no data")
	}
	sort.Strings(keys)

	for _, k := range keys {
		if FormatFromName(k) != "" {
			content, _ := lookup(k)
			return k, content, nil
		}
	}

	if len(keys) == 1 {
		content, _ := lookup(keys[0])
		return keys[0], content, nil
	}

	return "", nil, fmt.Errorf("no document key found among %s", strings.Join(keys, ", "))
}
