// Package source fetches dependency documents from files, inline text, the
// embedded samples, HTTP endpoints and Kubernetes ConfigMaps, decodes them
// from JSON, JSONC, YAML or CUE, and builds graph indexes from them with
// caching by content digest.
package source
