package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is a dependency document: job names mapped to the jobs that
// directly follow them. Entries keep the order in which the names first
// appeared in the source.
type Document struct {
	Entries []Entry

	// positions maps names to their index in Entries[:indexed]
	positions map[string]int
	indexed   int
	base      *Entry
}

// Entry is a single key of a dependency document
type Entry struct {
	// Name is the upstream job
	Name string

	// Downstream lists the jobs that directly depend on Name
	// Duplicates are allowed here and collapsed when the index is built
	Downstream []string
}

// NewDocument creates a document from a plain map. Map iteration order is
// random, so callers that care about display order should use Set instead.
func NewDocument(m map[string][]string) *Document {
	doc := &Document{}
	for _, name := range sortedKeys(m) {
		doc.Set(name, m[name])
	}
	return doc
}

// Set assigns the downstream jobs of name. A name that is already present
// keeps its position and takes the new value, the way a decoded JSON object
// behaves when a key is repeated.
func (d *Document) Set(name string, downstream []string) {
	if downstream == nil {
		downstream = []string{}
	}
	if i, found := d.position(name); found {
		d.Entries[i].Downstream = downstream
		return
	}
	d.Entries = append(d.Entries, Entry{Name: name, Downstream: downstream})
}

// Merge adds the edges of other to d. Unlike Set, downstream lists of names
// present in both documents are concatenated.
func (d *Document) Merge(other *Document) {
	if other == nil {
		return
	}
	for _, e := range other.Entries {
		if i, found := d.position(e.Name); found {
			d.Entries[i].Downstream = append(d.Entries[i].Downstream, e.Downstream...)
			continue
		}
		d.Entries = append(d.Entries, Entry{
			Name:       e.Name,
			Downstream: append([]string{}, e.Downstream...),
		})
	}
}

// position returns the index of name in Entries. Entries appended since the
// last call are indexed first. The index is rebuilt when Entries was
// replaced or shrank, or when a cached position no longer holds name.
func (d *Document) position(name string) (int, bool) {
	if d.positions == nil || d.indexed > len(d.Entries) || d.base != firstEntry(d.Entries) {
		d.positions = make(map[string]int, len(d.Entries))
		d.indexed = 0
		d.base = firstEntry(d.Entries)
	}
	for ; d.indexed < len(d.Entries); d.indexed++ {
		n := d.Entries[d.indexed].Name
		if _, dup := d.positions[n]; !dup {
			d.positions[n] = d.indexed
		}
	}

	i, found := d.positions[name]
	if found && d.Entries[i].Name != name {
		d.positions = nil
		return d.position(name)
	}
	return i, found
}

func firstEntry(entries []Entry) *Entry {
	if len(entries) == 0 {
		return nil
	}
	return &entries[0]
}

// Len returns the number of keys in the document
func (d *Document) Len() int {
	return len(d.Entries)
}

// MarshalJSON writes the document as a JSON object in entry order
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		downstream := e.Downstream
		if downstream == nil {
			downstream = []string{}
		}
		value, err := json.Marshal(downstream)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes and validates a JSON dependency document
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// Mode selects how far a query follows the graph
type Mode string

const (
	// ModeDirect returns immediate neighbors only
	ModeDirect Mode = "direct"

	// ModeTransitive returns the full closure in the queried direction
	ModeTransitive Mode = "transitive"
)

// ErrUnknownMode is returned for a query mode other than direct or transitive
var ErrUnknownMode = errors.New("unknown query mode")

// ParseMode parses a query mode. An empty string selects ModeDirect.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeTransitive:
		return ModeTransitive, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownMode, s, ModeDirect, ModeTransitive)
	}
}

// CheckResult is the combined view of a job and its neighborhood
type CheckResult struct {
	// Job is the queried job
	Job string `json:"job"`

	// Mode is the mode the query ran with
	Mode Mode `json:"mode"`

	// Upstream are the jobs that must run before Job
	Upstream []string `json:"upstream"`

	// Downstream are the jobs that run after Job
	Downstream []string `json:"downstream"`

	// Relevant is the sorted union of Upstream, Job and Downstream
	Relevant []string `json:"relevant"`
}

// Stats summarizes an index
type Stats struct {
	Jobs        int  `json:"jobs"`
	Edges       int  `json:"edges"`
	Roots       int  `json:"roots"`
	Leaves      int  `json:"leaves"`
	Cyclic      bool `json:"cyclic"`
	CycleGroups int  `json:"cycleGroups"`
}
