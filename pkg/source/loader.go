package source

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sourcegraph/conc/pool"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/lineage/pkg/graph"
)

// LoaderConfig contains configuration for creating a Loader
type LoaderConfig struct {
	// K8sClient enables the configmap source when set
	K8sClient client.Reader

	// Namespace is the default namespace for configmap references
	Namespace string

	// EmbeddedFS holds the bundled documents for the embedded source
	EmbeddedFS fs.FS

	// EmbeddedDefault is the embedded document selected by "embedded:default"
	EmbeddedDefault string

	// MaxDocumentBytes bounds file and HTTP documents, 0 means no limit
	MaxDocumentBytes int64

	// DefaultFormat is used when a source gives no format hint
	// Empty means sniff the content
	DefaultFormat Format

	// MaxConcurrency bounds concurrent fetches when loading several sources
	// Default: 4
	MaxConcurrency int

	// CacheEntries bounds the index cache
	// Default: DefaultCacheEntries
	CacheEntries int
}

// Loader fetches documents, decodes them and builds indexes, caching indexes
// by content digest
type Loader struct {
	registry       *Registry
	cache          *Cache
	defaultFormat  Format
	maxConcurrency int
}

// Result is a loaded index and where it came from
type Result struct {
	// Index is the built dependency index
	Index *graph.Index

	// Sources describes each fetched document, in load order
	Sources []string

	// Cached is true when the index was reused from the cache
	Cached bool
}

// NewLoader creates a loader with every fetcher the configuration allows
func NewLoader(cfg LoaderConfig) *Loader {
	registry := NewRegistry(
		NewFileFetcher(cfg.MaxDocumentBytes),
		NewInlineFetcher(),
		NewHTTPFetcher(nil, cfg.MaxDocumentBytes),
	)
	if cfg.EmbeddedFS != nil {
		registry.Register(NewEmbeddedFetcher(cfg.EmbeddedFS, cfg.EmbeddedDefault))
	}
	if cfg.K8sClient != nil {
		registry.Register(NewConfigMapFetcher(cfg.K8sClient, cfg.Namespace))
	}
	return NewLoaderWithRegistry(registry, cfg)
}

// NewLoaderWithRegistry creates a loader over an existing registry
func NewLoaderWithRegistry(registry *Registry, cfg LoaderConfig) *Loader {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Loader{
		registry:       registry,
		cache:          NewCache(cfg.CacheEntries),
		defaultFormat:  cfg.DefaultFormat,
		maxConcurrency: maxConcurrency,
	}
}

// Registry returns the loader's fetcher registry
func (l *Loader) Registry() *Registry {
	return l.registry
}

// ClearCache drops every cached index, so the next load decodes and builds
// from scratch
func (l *Loader) ClearCache() {
	l.cache.Clear()
}

// Load fetches every ref, merges the documents in argument order and builds
// one index from them. Fetches run concurrently.
func (l *Loader) Load(ctx context.Context, refs ...Ref) (*Result, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("no sources given")
	}
	logger := log.FromContext(ctx)

	fetched, err := l.fetchAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	sources := make([]string, len(fetched))
	keys := make([]string, len(fetched))
	formats := make([]Format, len(fetched))
	for i, fr := range fetched {
		sources[i] = fr.Source
		formats[i] = l.formatFor(fr.Format, fr.Content)
		keys[i] = fr.Digest + "/" + string(formats[i])
	}
	cacheKey := strings.Join(keys, "|")

	if idx, found := l.cache.Get(cacheKey); found {
		logger.V(1).Info("Reusing cached dependency index", "sources", sources, "digest", idx.Digest())
		return &Result{Index: idx, Sources: sources, Cached: true}, nil
	}

	start := time.Now()
	merged := &graph.Document{}
	for i, fr := range fetched {
		doc, err := Decode(formats[i], fr.Content)
		if err != nil {
			RecordMalformed(formats[i])
			return nil, fmt.Errorf("source %s: %w", fr.Source, err)
		}
		merged.Merge(doc)
	}

	idx, err := graph.Build(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency index: %w", err)
	}
	RecordBuild(time.Since(start).Seconds())
	l.cache.Set(cacheKey, idx)

	logger.Info("Loaded dependency index",
		"sources", sources, "keys", merged.Len(), "jobs", idx.Size(), "edges", idx.EdgeCount(), "digest", idx.Digest())

	return &Result{Index: idx, Sources: sources}, nil
}

// LoadBytes decodes an uploaded document and builds an index from it.
// An empty format falls back to the configured default, then to sniffing.
func (l *Loader) LoadBytes(ctx context.Context, content []byte, format Format, name string) (*Result, error) {
	format = l.formatFor(format, content)
	cacheKey := fmt.Sprintf("upload:%x/%s", xxhash.Sum64(content), format)
	if name == "" {
		name = "upload"
	}

	if idx, found := l.cache.Get(cacheKey); found {
		return &Result{Index: idx, Sources: []string{name}, Cached: true}, nil
	}

	start := time.Now()
	doc, err := Decode(format, content)
	if err != nil {
		RecordMalformed(format)
		return nil, err
	}
	idx, err := graph.Build(doc)
	if err != nil {
		return nil, err
	}
	RecordBuild(time.Since(start).Seconds())
	l.cache.Set(cacheKey, idx)

	log.FromContext(ctx).Info("Loaded uploaded dependency index",
		"name", name, "format", format, "keys", doc.Len(), "jobs", idx.Size(), "edges", idx.EdgeCount(), "digest", idx.Digest())

	return &Result{Index: idx, Sources: []string{name}}, nil
}

func (l *Loader) formatFor(hint Format, content []byte) Format {
	if hint != "" {
		return hint
	}
	if l.defaultFormat != "" {
		return l.defaultFormat
	}
	return Sniff(content)
}

// fetchAll fetches refs with bounded concurrency; results keep ref order
func (l *Loader) fetchAll(ctx context.Context, refs []Ref) ([]*FetchResult, error) {
	results := make([]*FetchResult, len(refs))

	p := pool.New().WithMaxGoroutines(l.maxConcurrency).WithErrors().WithContext(ctx).WithCancelOnError()
	for i, ref := range refs {
		p.Go(func(ctx context.Context) error {
			start := time.Now()
			res, err := l.registry.Fetch(ctx, ref)
			status := "success"
			if err != nil {
				status = "failure"
			}
			RecordFetch(ref.Type, status, time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("source %s: %w", ref, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
