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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chazu/lineage/pkg/graph"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeUnknownJob       = "UNKNOWN_JOB"
	CodeMalformedGraph   = "MALFORMED_GRAPH"
	CodeInvalidMode      = "INVALID_MODE"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeNoPath           = "NO_PATH"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeNotLoaded        = "NOT_LOADED"
	CodeLoadFailed       = "LOAD_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// GraphResponse describes the loaded graph
type GraphResponse struct {
	Digest   string      `json:"digest"`
	Sources  []string    `json:"sources"`
	Origin   Origin      `json:"origin"`
	LoadedAt string      `json:"loadedAt"`
	Stats    graph.Stats `json:"stats"`
}

// JobsResponse is a list of jobs, optionally tied to a queried job
type JobsResponse struct {
	Job  string     `json:"job,omitempty"`
	Mode graph.Mode `json:"mode,omitempty"`
	Jobs []string   `json:"jobs"`
}

// CyclesResponse lists the cycle groups of the loaded graph
type CyclesResponse struct {
	Cycles [][]string `json:"cycles"`
}

// PathResponse is a downstream path between two jobs
type PathResponse struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Path []string `json:"path"`
}

// HealthResponse is the body of the health and readiness probes
type HealthResponse struct {
	Status string `json:"status"`
}

// writeError maps an error to a status and code. Domain error messages are
// passed through verbatim.
func writeError(c *gin.Context, err error) {
	var (
		unknown   *graph.UnknownJobError
		malformed *graph.MalformedGraphError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: unknown.Error(), Code: CodeUnknownJob})
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: malformed.Error(), Code: CodeMalformedGraph})
	case errors.Is(err, graph.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidMode})
	case errors.Is(err, graph.ErrNoPath):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNoPath})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Code: CodePayloadTooLarge})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
	}
}

// queryResult labels err for metrics
func queryResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case graph.IsUnknownJob(err):
		return "unknown_job"
	case errors.Is(err, graph.ErrNoPath):
		return "no_path"
	default:
		return "error"
	}
}
