package source

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultEmbeddedRef selects the default sample document
const DefaultEmbeddedRef = "default"

// EmbeddedFetcher serves documents bundled with the binary
type EmbeddedFetcher struct {
	fsys        fs.FS
	defaultName string
}

// NewEmbeddedFetcher creates an embedded fetcher over fsys. defaultName is
// the file returned for an empty ref or DefaultEmbeddedRef.
func NewEmbeddedFetcher(fsys fs.FS, defaultName string) *EmbeddedFetcher {
	return &EmbeddedFetcher{
		fsys:        fsys,
		defaultName: defaultName,
	}
}

// Type returns the fetcher type
func (f *EmbeddedFetcher) Type() string {
	return TypeEmbedded
}

// Fetch retrieves an embedded document
// ref is the file name, with or without extension (e.g., "default", "default.json")
func (f *EmbeddedFetcher) Fetch(_ context.Context, ref string) (*FetchResult, error) {
	name, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}

	content, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded document %s: %w", name, err)
	}

	return &FetchResult{
		Content: content,
		Digest:  fmt.Sprintf("embedded:%s:%x", name, xxhash.Sum64(content)),
		Source:  "embedded://" + name,
		Format:  FormatFromName(name),
	}, nil
}

func (f *EmbeddedFetcher) resolve(ref string) (string, error) {
	if ref == "" || ref == DefaultEmbeddedRef {
		return f.defaultName, nil
	}
	if _, err := fs.Stat(f.fsys, ref); err == nil {
		return ref, nil
	}

	names, err := f.List()
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if strings.TrimSuffix(name, path.Ext(name)) == ref {
			return name, nil
		}
	}
	return "", fmt.Errorf("embedded document %s not found (available: %s)", ref, strings.Join(names, ", "))
}

// List returns the names of the embedded documents
func (f *EmbeddedFetcher) List() ([]string, error) {
	entries, err := fs.ReadDir(f.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded documents: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if FormatFromName(entry.Name()) == "" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
