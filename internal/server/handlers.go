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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/lineage/pkg/graph"
	"github.com/chazu/lineage/pkg/metrics"
	"github.com/chazu/lineage/pkg/source"
)

// UploadField is the multipart field holding an uploaded document
const UploadField = "file"

// Handlers contains the HTTP handlers for the dependency explorer
type Handlers struct {
	holder         *Holder
	loader         *source.Loader
	resetRefs      []source.Ref
	maxUploadBytes int64
}

// NewHandlers creates handlers serving the graph held by holder. Reset
// requests reload resetRefs through loader.
func NewHandlers(holder *Holder, loader *source.Loader, resetRefs []source.Ref, maxUploadBytes int64) *Handlers {
	return &Handlers{
		holder:         holder,
		loader:         loader,
		resetRefs:      resetRefs,
		maxUploadBytes: maxUploadBytes,
	}
}

// HandleHealth reports that the process is serving
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReady reports whether a graph has been loaded
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.holder.Load() == nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "no graph loaded"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

// HandleGetGraph describes the loaded graph
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, graphResponse(snap))
}

// HandleGetDocument returns the normalized document of the loaded graph
func (h *Handlers) HandleGetDocument(c *gin.Context) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap.Index.Document())
}

// HandleUpload replaces the loaded graph with an uploaded document. The
// document is either the raw request body or a multipart "file" field. A
// rejected document leaves the current graph in place.
func (h *Handlers) HandleUpload(c *gin.Context) {
	ctx := c.Request.Context()
	logger := log.FromContext(ctx)

	format, err := source.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidFormat})
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	content, name, hint, err := readUpload(c)
	if err != nil {
		metrics.RecordGraphReplacement(string(OriginUpload), "failure")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeMissingParameter})
		return
	}
	if format == "" {
		format = hint
	}

	res, err := h.loader.LoadBytes(ctx, content, format, name)
	if err != nil {
		metrics.RecordGraphReplacement(string(OriginUpload), "failure")
		logger.Info("Rejected uploaded dependency document", "name", name, "reason", err.Error())
		writeError(c, err)
		return
	}

	snap := h.holder.Install(res, OriginUpload)
	logger.Info("Replaced dependency graph", "name", name, "digest", snap.Index.Digest())
	c.JSON(http.StatusOK, graphResponse(snap))
}

// HandleReset reloads the startup sources. The index cache is dropped first
// so the sources are decoded and built again.
func (h *Handlers) HandleReset(c *gin.Context) {
	ctx := c.Request.Context()

	h.loader.ClearCache()
	res, err := h.loader.Load(ctx, h.resetRefs...)
	if err != nil {
		metrics.RecordGraphReplacement(string(OriginReset), "failure")
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: CodeLoadFailed})
		return
	}

	snap := h.holder.Install(res, OriginReset)
	log.FromContext(ctx).Info("Reset dependency graph", "sources", snap.Sources, "digest", snap.Index.Digest())
	c.JSON(http.StatusOK, graphResponse(snap))
}

// HandleListJobs lists every known job
func (h *Handlers) HandleListJobs(c *gin.Context) {
	h.handleList(c, (*graph.Index).Jobs)
}

// HandleRoots lists the jobs with no upstream jobs
func (h *Handlers) HandleRoots(c *gin.Context) {
	h.handleList(c, (*graph.Index).Roots)
}

// HandleLeaves lists the jobs with no downstream jobs
func (h *Handlers) HandleLeaves(c *gin.Context) {
	h.handleList(c, (*graph.Index).Leaves)
}

// HandleCycles lists the cycle groups
func (h *Handlers) HandleCycles(c *gin.Context) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, CyclesResponse{Cycles: snap.Index.Cycles()})
}

// HandleCheck returns the combined upstream/current/downstream view for the
// job in the path
func (h *Handlers) HandleCheck(c *gin.Context) {
	h.handleCheck(c, c.Param("name"))
}

// HandleCheckQuery is HandleCheck with the job taken from ?job=, so that a
// missing name is reported rather than routed elsewhere
func (h *Handlers) HandleCheckQuery(c *gin.Context) {
	h.handleCheck(c, c.Query("job"))
}

// HandleUpstream returns the upstream jobs of a job
func (h *Handlers) HandleUpstream(c *gin.Context) {
	h.handleNeighbors(c, "upstream", (*graph.Index).Upstream)
}

// HandleDownstream returns the downstream jobs of a job
func (h *Handlers) HandleDownstream(c *gin.Context) {
	h.handleNeighbors(c, "downstream", (*graph.Index).Downstream)
}

// HandleRelevant returns the job with its upstream and downstream jobs
func (h *Handlers) HandleRelevant(c *gin.Context) {
	h.handleNeighbors(c, "relevant", (*graph.Index).Relevant)
}

// HandlePath returns a shortest downstream path between ?from= and ?to=
func (h *Handlers) HandlePath(c *gin.Context) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}

	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "from and to parameters are required",
			Code:  CodeMissingParameter,
		})
		return
	}

	start := time.Now()
	path, err := snap.Index.Path(from, to)
	metrics.RecordQuery("path", "", queryResult(err), time.Since(start).Seconds())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PathResponse{From: from, To: to, Path: path})
}

func (h *Handlers) handleList(c *gin.Context, list func(*graph.Index) []string) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, JobsResponse{Jobs: list(snap.Index)})
}

func (h *Handlers) handleCheck(c *gin.Context, job string) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	mode, err := graph.ParseMode(c.Query("mode"))
	if err != nil {
		writeError(c, err)
		return
	}

	start := time.Now()
	result, err := snap.Index.Check(job, mode)
	metrics.RecordQuery("check", string(mode), queryResult(err), time.Since(start).Seconds())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) handleNeighbors(c *gin.Context, query string, fn func(*graph.Index, string, graph.Mode) ([]string, error)) {
	snap, ok := snapshotFrom(c)
	if !ok {
		return
	}
	mode, err := graph.ParseMode(c.Query("mode"))
	if err != nil {
		writeError(c, err)
		return
	}

	job := c.Param("name")
	start := time.Now()
	jobs, err := fn(snap.Index, job, mode)
	metrics.RecordQuery(query, string(mode), queryResult(err), time.Since(start).Seconds())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobsResponse{Job: job, Mode: mode, Jobs: jobs})
}

// readUpload returns the uploaded document, its name and the format its
// metadata implies
func readUpload(c *gin.Context) ([]byte, string, source.Format, error) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		header, err := c.FormFile(UploadField)
		if err != nil {
			return nil, "", "", fmt.Errorf("multipart upload needs a %q field: %w", UploadField, err)
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to open uploaded file: %w", err)
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to read uploaded file: %w", err)
		}
		return content, header.Filename, source.DetectFormat("", header.Filename, header.Header.Get("Content-Type")), nil
	}

	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", "", err
	}
	return content, "upload", source.FormatFromContentType(c.ContentType()), nil
}

func graphResponse(snap *Snapshot) GraphResponse {
	return GraphResponse{
		Digest:   snap.Index.Digest(),
		Sources:  snap.Sources,
		Origin:   snap.Origin,
		LoadedAt: snap.LoadedAt.UTC().Format(time.RFC3339),
		Stats:    snap.Index.Stats(),
	}
}
