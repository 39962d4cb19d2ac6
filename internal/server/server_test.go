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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chazu/lineage/pkg/graph"
	"github.com/chazu/lineage/pkg/source"
	"github.com/chazu/lineage/samples"
)

var _ = Describe("Dependency graph API", func() {
	var (
		ctx    context.Context
		loader *source.Loader
		holder *Holder
		srv    *Server
	)

	request := func(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	get := func(path string) *httptest.ResponseRecorder {
		return request(http.MethodGet, path, nil, "")
	}

	decode := func(rec *httptest.ResponseRecorder, into any) {
		GinkgoHelper()
		Expect(json.Unmarshal(rec.Body.Bytes(), into)).To(Succeed(), rec.Body.String())
	}

	expectError := func(rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
		GinkgoHelper()
		Expect(rec.Code).To(Equal(status), rec.Body.String())
		var resp ErrorResponse
		decode(rec, &resp)
		Expect(resp.Code).To(Equal(code))
		return resp
	}

	BeforeEach(func() {
		ctx = context.Background()
		loader = source.NewLoader(source.LoaderConfig{
			EmbeddedFS:      samples.FS,
			EmbeddedDefault: samples.Default,
		})
		res, err := loader.Load(ctx, source.Ref{Type: source.TypeEmbedded, Ref: source.DefaultEmbeddedRef})
		Expect(err).NotTo(HaveOccurred())

		holder = NewHolder(nil)
		holder.Install(res, OriginStartup)
		srv = New(Config{Logger: GinkgoLogr, MaxUploadBytes: 4096}, loader, holder)
	})

	Context("When probing the server", func() {
		It("Should report health and readiness", func() {
			Expect(get("/healthz").Code).To(Equal(http.StatusOK))
			Expect(get("/readyz").Code).To(Equal(http.StatusOK))
		})

		It("Should not be ready without a graph", func() {
			srv = New(Config{Logger: GinkgoLogr}, loader, NewHolder(nil))
			Expect(get("/readyz").Code).To(Equal(http.StatusServiceUnavailable))
			expectError(get("/api/v1/jobs"), http.StatusServiceUnavailable, CodeNotLoaded)
		})

		It("Should expose query metrics", func() {
			Expect(get("/api/v1/jobs/i1147_gfc_tns/upstream").Code).To(Equal(http.StatusOK))

			rec := get("/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("lineage_query_total"))
			Expect(rec.Body.String()).To(ContainSubstring("lineage_graph_jobs"))
		})
	})

	Context("When describing the loaded graph", func() {
		It("Should return stats and sources", func() {
			rec := get("/api/v1/graph")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp GraphResponse
			decode(rec, &resp)
			Expect(resp.Origin).To(Equal(OriginStartup))
			Expect(resp.Sources).To(HaveLen(1))
			Expect(resp.Digest).To(HaveLen(16))
			Expect(resp.Stats.Jobs).To(Equal(16))
			Expect(resp.Stats.Edges).To(Equal(11))
			Expect(resp.Stats.Cyclic).To(BeFalse())
		})

		It("Should return the normalized document", func() {
			rec := get("/api/v1/graph/document")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var doc map[string][]string
			decode(rec, &doc)
			Expect(doc).To(HaveKeyWithValue("i0001_ivo_hdr_weekly", []string{"i0001_ivo_hdr_daily"}))
		})

		It("Should list jobs roots and leaves", func() {
			var jobs JobsResponse
			decode(get("/api/v1/jobs"), &jobs)
			Expect(jobs.Jobs).To(HaveLen(16))
			Expect(jobs.Jobs).To(ContainElement("i0675_acu_bus_crd_ivo_daily_dag"))

			var roots JobsResponse
			decode(get("/api/v1/roots"), &roots)
			Expect(roots.Jobs).To(ContainElement("i1147_gfc_tns_weekly"))
			Expect(roots.Jobs).NotTo(ContainElement("i1147_gfc_tns"))

			var leaves JobsResponse
			decode(get("/api/v1/leaves"), &leaves)
			Expect(leaves.Jobs).To(ContainElement("i1147_gfc_tns"))

			var cycles CyclesResponse
			decode(get("/api/v1/cycles"), &cycles)
			Expect(cycles.Cycles).To(BeEmpty())
		})
	})

	Context("When querying a job", func() {
		It("Should return direct upstream jobs by default", func() {
			rec := get("/api/v1/jobs/i1147_gfc_tns/upstream")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp JobsResponse
			decode(rec, &resp)
			Expect(resp.Job).To(Equal("i1147_gfc_tns"))
			Expect(resp.Mode).To(Equal(graph.ModeDirect))
			Expect(resp.Jobs).To(Equal([]string{"i1146_pnr_gfc_daily", "i1146_pnr_gfc_weekly", "i1148_lws_gfc_weekly"}))
		})

		It("Should follow the closure in transitive mode", func() {
			var resp JobsResponse
			decode(get("/api/v1/jobs/i1147_gfc_tns/upstream?mode=transitive"), &resp)
			Expect(resp.Jobs).To(Equal([]string{
				"i1146_pnr_gfc_daily", "i1146_pnr_gfc_weekly", "i1147_gfc_tns_weekly", "i1148_lws_gfc_weekly",
			}))

			decode(get("/api/v1/jobs/i1608_pra_not_rvu_ivo_tnd_talend/downstream?mode=transitive"), &resp)
			Expect(resp.Jobs).To(Equal([]string{
				"i0675_acu_bus_crd_ivo_daily_dag", "i1608_pra_not_rvu_ivo_tnd_mf_daily", "i1608_pra_not_rvu_ivo_tnd_weekly",
			}))
		})

		It("Should return the relevant set", func() {
			var resp JobsResponse
			decode(get("/api/v1/jobs/i1146_pnr_gfc_daily/relevant"), &resp)
			Expect(resp.Jobs).To(Equal([]string{"i1146_pnr_gfc_daily", "i1147_gfc_tns"}))
		})

		It("Should return the combined check view", func() {
			rec := get("/api/v1/jobs/i1148_lws_gfc_weekly")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp graph.CheckResult
			decode(rec, &resp)
			Expect(resp.Upstream).To(Equal([]string{"i1147_gfc_tns_weekly"}))
			Expect(resp.Downstream).To(Equal([]string{"i1147_gfc_tns", "i1148_lws_gfc_daily"}))
		})

		It("Should reject an unknown job with 404", func() {
			resp := expectError(get("/api/v1/jobs/z/downstream"), http.StatusNotFound, CodeUnknownJob)
			Expect(resp.Error).To(Equal(`no such job: "z"`))
		})

		It("Should reject a missing job name", func() {
			resp := expectError(get("/api/v1/check"), http.StatusNotFound, CodeUnknownJob)
			Expect(resp.Error).To(Equal("job name not provided"))
		})

		It("Should reject an unknown mode", func() {
			expectError(get("/api/v1/jobs/i1147_gfc_tns/upstream?mode=sideways"), http.StatusBadRequest, CodeInvalidMode)
		})
	})

	Context("When asking for a path", func() {
		It("Should return a shortest downstream path", func() {
			var resp PathResponse
			decode(get("/api/v1/path?from=i1147_gfc_tns_weekly&to=i1147_gfc_tns"), &resp)
			Expect(resp.Path).To(Equal([]string{"i1147_gfc_tns_weekly", "i1148_lws_gfc_weekly", "i1147_gfc_tns"}))
		})

		It("Should report unreachable and missing endpoints", func() {
			expectError(get("/api/v1/path?from=i1147_gfc_tns&to=i1147_gfc_tns_weekly"), http.StatusNotFound, CodeNoPath)
			expectError(get("/api/v1/path?from=i1147_gfc_tns"), http.StatusBadRequest, CodeMissingParameter)
			expectError(get("/api/v1/path?from=nope&to=i1147_gfc_tns"), http.StatusNotFound, CodeUnknownJob)
		})
	})

	Context("When uploading a document", func() {
		It("Should replace the graph wholesale", func() {
			rec := request(http.MethodPost, "/api/v1/graph", strings.NewReader(`{"a": ["b"], "b": ["c"]}`), "application/json")
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			var resp GraphResponse
			decode(rec, &resp)
			Expect(resp.Origin).To(Equal(OriginUpload))
			Expect(resp.Stats.Jobs).To(Equal(3))

			var up JobsResponse
			decode(get("/api/v1/jobs/c/upstream?mode=transitive"), &up)
			Expect(up.Jobs).To(Equal([]string{"a", "b"}))
			expectError(get("/api/v1/jobs/i1147_gfc_tns/upstream"), http.StatusNotFound, CodeUnknownJob)
		})

		It("Should accept a multipart file and detect its format", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile(UploadField, "deps.yaml")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("a: [b]\nb: [a]\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			rec := request(http.MethodPost, "/api/v1/graph", &body, mw.FormDataContentType())
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			var resp GraphResponse
			decode(rec, &resp)
			Expect(resp.Sources).To(Equal([]string{"deps.yaml"}))
			Expect(resp.Stats.Cyclic).To(BeTrue())

			var down JobsResponse
			decode(get("/api/v1/jobs/a/downstream?mode=transitive"), &down)
			Expect(down.Jobs).To(Equal([]string{"a", "b"}))
		})

		It("Should honor an explicit format", func() {
			rec := request(http.MethodPost, "/api/v1/graph?format=cue", strings.NewReader(`a: ["b"]`), "text/plain")
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			expectError(
				request(http.MethodPost, "/api/v1/graph?format=toml", strings.NewReader(`{}`), ""),
				http.StatusBadRequest, CodeInvalidFormat)
		})

		It("Should keep the previous graph when the document is malformed", func() {
			before := holder.Load()

			resp := expectError(
				request(http.MethodPost, "/api/v1/graph", strings.NewReader(`{"a": "b"}`), "application/json"),
				http.StatusBadRequest, CodeMalformedGraph)
			Expect(resp.Error).To(ContainSubstring(`job "a"`))
			Expect(holder.Load()).To(BeIdenticalTo(before))

			var up JobsResponse
			decode(get("/api/v1/jobs/i1147_gfc_tns/upstream"), &up)
			Expect(up.Jobs).To(HaveLen(3))
		})

		It("Should reject documents over the upload limit", func() {
			big := `{"a": ["` + strings.Repeat("b", 8192) + `"]}`
			expectError(
				request(http.MethodPost, "/api/v1/graph", strings.NewReader(big), "application/json"),
				http.StatusRequestEntityTooLarge, CodePayloadTooLarge)
		})

		It("Should restore the startup sources on reset", func() {
			rec := request(http.MethodPost, "/api/v1/graph", strings.NewReader(`{"a": ["b"]}`), "application/json")
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = request(http.MethodPost, "/api/v1/graph/reset", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			var resp GraphResponse
			decode(rec, &resp)
			Expect(resp.Origin).To(Equal(OriginReset))
			Expect(resp.Stats.Jobs).To(Equal(16))
		})
	})

	Context("When uploads race with queries", func() {
		It("Should answer every query from a complete graph", func() {
			docs := []string{`{"a": ["b"], "b": ["c"]}`, `{"a": ["c"], "c": ["b"]}`}

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func(doc string) {
					defer wg.Done()
					defer GinkgoRecover()
					rec := request(http.MethodPost, "/api/v1/graph", strings.NewReader(doc), "application/json")
					Expect(rec.Code).To(Equal(http.StatusOK))
				}(docs[i%2])
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					rec := get("/api/v1/jobs/a/downstream?mode=transitive")
					if rec.Code == http.StatusOK {
						var resp JobsResponse
						Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
						Expect(resp.Jobs).To(Equal([]string{"b", "c"}))
					}
				}()
			}
			wg.Wait()
		})
	})
})
