package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// Upstream returns the jobs that must run before job. In direct mode the
// result keeps edge order; in transitive mode it is sorted.
func (i *Index) Upstream(job string, mode Mode) ([]string, error) {
	if err := i.lookup(job); err != nil {
		return nil, err
	}
	return i.collect(job, mode, i.upstream)
}

// Downstream returns the jobs that run after job. In direct mode the result
// is the deduplicated downstream list from the document; in transitive mode
// it is sorted.
func (i *Index) Downstream(job string, mode Mode) ([]string, error) {
	if err := i.lookup(job); err != nil {
		return nil, err
	}
	return i.collect(job, mode, i.downstream)
}

// Relevant returns the sorted union of job, its upstream and its downstream
// jobs
func (i *Index) Relevant(job string, mode Mode) ([]string, error) {
	result, err := i.Check(job, mode)
	if err != nil {
		return nil, err
	}
	return result.Relevant, nil
}

// Check runs the upstream, downstream and relevant queries for job at once
func (i *Index) Check(job string, mode Mode) (*CheckResult, error) {
	if mode == "" {
		mode = ModeDirect
	}

	upstream, err := i.Upstream(job, mode)
	if err != nil {
		return nil, err
	}
	downstream, err := i.Downstream(job, mode)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{job: {}}
	relevant := []string{job}
	for _, list := range [][]string{upstream, downstream} {
		for _, name := range list {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			relevant = append(relevant, name)
		}
	}
	sort.Strings(relevant)

	return &CheckResult{
		Job:        job,
		Mode:       mode,
		Upstream:   upstream,
		Downstream: downstream,
		Relevant:   relevant,
	}, nil
}

// Path returns one shortest downstream path from one job to another,
// both ends included
func (i *Index) Path(from, to string) ([]string, error) {
	if err := i.lookup(from); err != nil {
		return nil, err
	}
	if err := i.lookup(to); err != nil {
		return nil, err
	}
	if from == to {
		return []string{from}, nil
	}

	path, err := graph.ShortestPath(i.graph, from, to)
	if errors.Is(err, graph.ErrTargetNotReachable) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute path %s -> %s: %w", from, to, err)
	}
	return path, nil
}

func (i *Index) lookup(job string) error {
	if job == "" || !i.Has(job) {
		return &UnknownJobError{Job: job}
	}
	return nil
}

func (i *Index) collect(job string, mode Mode, adjacency map[string][]string) ([]string, error) {
	switch mode {
	case "", ModeDirect:
		return append([]string{}, adjacency[job]...), nil
	case ModeTransitive:
		return closure(job, adjacency), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// closure walks adjacency breadth-first from start and returns every job
// reached, sorted. start itself is only included when a cycle leads back
// to it.
func closure(start string, adjacency map[string][]string) []string {
	visited := make(map[string]struct{})
	queue := append([]string(nil), adjacency[start]...)
	reached := []string{}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}
		reached = append(reached, next)
		queue = append(queue, adjacency[next]...)
	}

	sort.Strings(reached)
	return reached
}
