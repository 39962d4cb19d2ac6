/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"sync/atomic"
	"time"

	"github.com/chazu/lineage/pkg/graph"
	"github.com/chazu/lineage/pkg/metrics"
	"github.com/chazu/lineage/pkg/source"
)

// Origin describes how a snapshot came to be loaded
type Origin string

const (
	// OriginStartup is the graph loaded from the configured sources
	OriginStartup Origin = "startup"

	// OriginUpload is a graph uploaded through the API
	OriginUpload Origin = "upload"

	// OriginReset is the graph restored by a reset request
	OriginReset Origin = "reset"
)

// Snapshot is one loaded graph. It is never modified after creation.
type Snapshot struct {
	// Index is the immutable dependency index
	Index *graph.Index

	// Sources describes where the document came from
	Sources []string

	// Origin is how the snapshot was loaded
	Origin Origin

	// LoadedAt is when the snapshot was installed
	LoadedAt time.Time
}

// Holder owns the current snapshot. Replacing the graph swaps in a whole
// new snapshot, so readers holding the old one are unaffected.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder creates a holder, optionally with an initial snapshot
func NewHolder(initial *Snapshot) *Holder {
	h := &Holder{}
	if initial != nil {
		h.current.Store(initial)
	}
	return h
}

// Load returns the current snapshot, or nil if nothing has been loaded
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap installs next and returns the snapshot it replaced
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}

// Install wraps a load result in a snapshot and swaps it in
func (h *Holder) Install(res *source.Result, origin Origin) *Snapshot {
	snap := &Snapshot{
		Index:    res.Index,
		Sources:  res.Sources,
		Origin:   origin,
		LoadedAt: time.Now(),
	}
	h.Swap(snap)

	metrics.RecordGraphReplacement(string(origin), "success")
	metrics.SetGraphSize(res.Index.Size(), res.Index.EdgeCount())
	return snap
}
