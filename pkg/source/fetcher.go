package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// FetchResult contains the result of fetching a dependency document
type FetchResult struct {
	// Content is the raw document
	Content []byte

	// Digest is a content-addressable identifier for the document
	// For ConfigMap: uid and resourceVersion
	// For everything else: content hash
	Digest string

	// Source describes where the document was fetched from (for logging/debugging)
	Source string

	// Format is the format implied by the source (file extension, content
	// type, ConfigMap key), empty when the source gives no hint
	Format Format
}

// Fetcher defines the interface for fetching dependency documents from
// various sources
type Fetcher interface {
	// Fetch retrieves a document from the source
	// ctx: context for cancellation and timeouts
	// ref: the reference string (path, URL, ConfigMap name, etc.)
	Fetch(ctx context.Context, ref string) (*FetchResult, error)

	// Type returns the type of fetcher (for logging and metrics)
	Type() string
}

// Ref names a document: the fetcher type and the reference passed to it
type Ref struct {
	Type string
	Ref  string
}

func (r Ref) String() string {
	return r.Type + ":" + r.Ref
}

// ParseRef parses a "type:ref" source string. URLs select the http fetcher,
// and a string without a known type prefix is treated as a file path.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, fmt.Errorf("source reference is empty")
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Ref{Type: TypeHTTP, Ref: s}, nil
	}

	kind, ref, found := strings.Cut(s, ":")
	if !found {
		return Ref{Type: TypeFile, Ref: s}, nil
	}
	switch kind {
	case TypeFile, TypeInline, TypeEmbedded, TypeHTTP, TypeConfigMap:
		return Ref{Type: kind, Ref: ref}, nil
	default:
		return Ref{Type: TypeFile, Ref: s}, nil
	}
}

// Fetcher types
const (
	TypeFile      = "file"
	TypeInline    = "inline"
	TypeEmbedded  = "embedded"
	TypeHTTP      = "http"
	TypeConfigMap = "configmap"
)

// Registry manages all available fetchers
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates a registry holding the given fetchers
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.Register(f)
	}
	return r
}

// Register adds or replaces the fetcher for f.Type()
func (r *Registry) Register(f Fetcher) {
	r.fetchers[f.Type()] = f
}

// GetFetcher returns the fetcher for the given type
func (r *Registry) GetFetcher(fetcherType string) (Fetcher, error) {
	fetcher, ok := r.fetchers[fetcherType]
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %s (available: %s)", fetcherType, strings.Join(r.Types(), ", "))
	}
	return fetcher, nil
}

// Types lists the registered fetcher types, sorted
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.fetchers))
	for t := range r.fetchers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Fetch fetches a document using the appropriate fetcher
func (r *Registry) Fetch(ctx context.Context, ref Ref) (*FetchResult, error) {
	fetcher, err := r.GetFetcher(ref.Type)
	if err != nil {
		return nil, err
	}
	return fetcher.Fetch(ctx, ref.Ref)
}
