package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dominikbraun/graph"
)

// Index is an immutable dependency index built from a Document. It is safe
// for concurrent use; replacing the graph means building a new Index.
type Index struct {
	// graph is the underlying graph structure from dominikbraun/graph
	graph graph.Graph[string, string]

	// order lists every job in first-seen order
	order []string

	// downstream is the forward adjacency with duplicates collapsed
	downstream map[string][]string

	// upstream is the reverse adjacency, derived once at build time
	upstream map[string][]string

	// keys lists the jobs that appeared as document keys, in document order
	keys []string

	edges  int
	cycles [][]string
	digest string
}

// Load validates doc and builds an index from it
func Load(doc *Document) (*Index, error) {
	return Build(doc)
}

// Build converts a Document into an Index. Duplicate edges collapse to the
// first occurrence. Cycles are allowed.
func Build(doc *Document) (*Index, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	// No PreventCycles: cyclic documents are valid and handled at query time
	dg := graph.New(graph.StringHash, graph.Directed())

	idx := &Index{
		graph:      dg,
		downstream: make(map[string][]string),
		upstream:   make(map[string][]string),
	}

	addJob := func(name string) error {
		if _, known := idx.downstream[name]; known {
			return nil
		}
		idx.order = append(idx.order, name)
		idx.downstream[name] = []string{}
		if err := dg.AddVertex(name); err != nil {
			return fmt.Errorf("failed to add vertex %s: %w", name, err)
		}
		return nil
	}

	isKey := make(map[string]struct{}, len(doc.Entries))
	for _, e := range doc.Entries {
		if err := addJob(e.Name); err != nil {
			return nil, err
		}
		if _, seen := isKey[e.Name]; !seen {
			isKey[e.Name] = struct{}{}
			idx.keys = append(idx.keys, e.Name)
		}
		for _, child := range e.Downstream {
			if err := addJob(child); err != nil {
				return nil, err
			}
			// AddEdge(source, target) means source -> target, i.e. the
			// source must complete before the target
			err := dg.AddEdge(e.Name, child)
			if errors.Is(err, graph.ErrEdgeAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", e.Name, child, err)
			}
			idx.downstream[e.Name] = append(idx.downstream[e.Name], child)
			idx.upstream[child] = append(idx.upstream[child], e.Name)
			idx.edges++
		}
	}

	cycles, err := idx.findCycles()
	if err != nil {
		return nil, err
	}
	idx.cycles = cycles
	idx.digest = idx.computeDigest()

	return idx, nil
}

// findCycles groups the jobs that sit on a cycle. A group is a strongly
// connected component with more than one job, or a single job with a self
// loop.
func (i *Index) findCycles() ([][]string, error) {
	components, err := graph.StronglyConnectedComponents(i.graph)
	if err != nil {
		return nil, fmt.Errorf("failed to compute strongly connected components: %w", err)
	}

	var groups [][]string
	for _, component := range components {
		if len(component) == 1 && !contains(i.downstream[component[0]], component[0]) {
			continue
		}
		group := append([]string(nil), component...)
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a][0] < groups[b][0]
	})
	return groups, nil
}

// computeDigest hashes the normalized forward adjacency
func (i *Index) computeDigest() string {
	data, err := json.Marshal(i.Document())
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Has reports whether the index knows job, as a key or a value
func (i *Index) Has(job string) bool {
	_, found := i.downstream[job]
	return found
}

// Size returns the number of jobs in the index
func (i *Index) Size() int {
	return len(i.order)
}

// EdgeCount returns the number of distinct edges
func (i *Index) EdgeCount() int {
	return i.edges
}

// Digest returns a content hash of the normalized graph. Two documents that
// differ only in duplicate edges share a digest.
func (i *Index) Digest() string {
	return i.digest
}

// Document returns the normalized document: every job in first-seen order
// with its deduplicated downstream list. Jobs that only appeared as values
// are omitted.
func (i *Index) Document() *Document {
	doc := &Document{}
	for _, name := range i.keys {
		doc.Entries = append(doc.Entries, Entry{
			Name:       name,
			Downstream: append([]string{}, i.downstream[name]...),
		})
	}
	return doc
}

// Jobs returns every known job, sorted
func (i *Index) Jobs() []string {
	jobs := append([]string{}, i.order...)
	sort.Strings(jobs)
	return jobs
}

// Roots returns the jobs with no upstream jobs, sorted
func (i *Index) Roots() []string {
	roots := []string{}
	for _, name := range i.order {
		if len(i.upstream[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns the jobs with no downstream jobs, sorted
func (i *Index) Leaves() []string {
	leaves := []string{}
	for _, name := range i.order {
		if len(i.downstream[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Cycles returns the groups of jobs that depend on themselves through one
// or more edges
func (i *Index) Cycles() [][]string {
	groups := make([][]string, 0, len(i.cycles))
	for _, g := range i.cycles {
		groups = append(groups, append([]string(nil), g...))
	}
	return groups
}

// HasCycles reports whether any job is reachable from itself
func (i *Index) HasCycles() bool {
	return len(i.cycles) > 0
}

// Stats summarizes the index
func (i *Index) Stats() Stats {
	return Stats{
		Jobs:        i.Size(),
		Edges:       i.edges,
		Roots:       len(i.Roots()),
		Leaves:      len(i.Leaves()),
		Cyclic:      i.HasCycles(),
		CycleGroups: len(i.cycles),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
