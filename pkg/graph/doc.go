// Package graph provides the dependency index for pipeline jobs. It turns a
// dependency document ({job: [downstream jobs...]}) into an immutable Index
// with a precomputed reverse adjacency and answers direct and transitive
// upstream/downstream queries over it.
package graph
