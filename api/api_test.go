package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/corpus/pkg/chunker"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/ingest"
	"github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/retrieve"
	"github.com/inkwellco/corpus/pkg/source"
	testutils "github.com/inkwellco/corpus/pkg/utils/test"
	"github.com/inkwellco/corpus/pkg/vector/memory"
)

// sliceSource serves a fixed set of documents.
type sliceSource struct {
	docs []source.Document
}

func (s *sliceSource) Documents(_ context.Context) ([]source.Document, error) {
	return s.docs, nil
}

var _ = Describe("Server", func() {
	var (
		server   *Server
		store    *index.Store
		embedder *testutils.MockEmbedder
		src      *sliceSource
	)

	do := func(method, target string, body any) (*http.Response, map[string]any) {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reqBody = bytes.NewReader(data)
		}

		req := httptest.NewRequest(method, target, reqBody)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.App().Test(req, int(5*time.Second/time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		if len(raw) > 0 && json.Valid(raw) {
			// Some endpoints return bare strings; ignore those.
			_ = json.Unmarshal(raw, &decoded)
		}

		return resp, decoded
	}

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()

		var err error
		store, err = index.NewStore(index.Opts{
			Driver:     memory.NewDriver(),
			Dir:        GinkgoT().TempDir(),
			Dimensions: 3,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		ch, err := chunker.New(1000, 200)
		Expect(err).NotTo(HaveOccurred())

		coordinator, err := ingest.NewCoordinator(ingest.Opts{
			Store:      store,
			Embedder:   embedder,
			Chunker:    ch,
			RetryDelay: time.Millisecond,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		retriever, err := retrieve.NewRetriever(retrieve.Opts{
			Store:    store,
			Embedder: embedder,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		src = &sliceSource{docs: []source.Document{
			{ID: "doc1", Source: "one.txt", Text: "the quick brown fox"},
			{ID: "doc2", Source: "two.txt", Text: strings.Repeat("b", 1500)},
		}}

		server = NewServer(Opts{
			Config:      Config{ListenAddr: ":0"},
			Store:       store,
			Coordinator: coordinator,
			Retriever:   retriever,
			Source:      src,
			Logger:      logger.Nop(),
		})
	})

	Describe("GET /ping", func() {
		It("responds with pong", func() {
			resp, _ := do("GET", "/ping", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /v1/ingest", func() {
		It("builds a version from the source", func() {
			resp, body := do("POST", "/v1/ingest", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			report := body["report"].(map[string]any)
			Expect(report["version_id"]).To(Equal("v000001"))
			Expect(report["succeeded"]).To(HaveLen(2))
			Expect(body["activated"]).To(BeFalse())

			v, err := store.Version("v000001")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Status).To(Equal(index.StatusReady))
		})

		It("activates the new version when requested", func() {
			resp, body := do("POST", "/v1/ingest", map[string]any{"activate": true})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["activated"]).To(BeTrue())

			live, err := store.Current()
			Expect(err).NotTo(HaveOccurred())
			Expect(live).To(Equal("v000001"))
		})

		It("returns 422 with the report when the whole batch fails", func() {
			embedder.FailOn = "the quick brown fox"
			src.docs = src.docs[:1]

			resp, body := do("POST", "/v1/ingest", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

			report := body["report"].(map[string]any)
			Expect(report["failed"]).To(HaveLen(1))
		})
	})

	Describe("GET /v1/search", func() {
		BeforeEach(func() {
			_, body := do("POST", "/v1/ingest", map[string]any{"activate": true})
			Expect(body["activated"]).To(BeTrue())
		})

		It("requires a query parameter", func() {
			resp, _ := do("GET", "/v1/search", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a non-positive top_k", func() {
			resp, _ := do("GET", "/v1/search?query=fox&top_k=0", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns ranked chunks", func() {
			resp, body := do("GET", "/v1/search?query=fox&top_k=2", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["query"]).To(Equal("fox"))
			Expect(body["count"]).To(BeNumerically("==", 2))

			results := body["results"].([]any)
			first := results[0].(map[string]any)
			Expect(first).To(HaveKey("chunk_id"))
			Expect(first).To(HaveKey("score"))
			Expect(first).To(HaveKey("text"))
		})
	})

	Describe("GET /v1/search without a live version", func() {
		It("responds 503", func() {
			resp, _ := do("GET", "/v1/search?query=fox", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("version management", func() {
		BeforeEach(func() {
			_, body := do("POST", "/v1/ingest", map[string]any{"activate": true})
			Expect(body["activated"]).To(BeTrue())
			do("POST", "/v1/ingest", nil)
		})

		It("lists versions and the live pointer", func() {
			resp, body := do("GET", "/v1/versions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["live"]).To(Equal("v000001"))
			Expect(body["versions"]).To(HaveLen(2))
		})

		It("activates another READY version", func() {
			resp, body := do("POST", "/v1/versions/v000002/activate", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["live"]).To(Equal("v000002"))
		})

		It("responds 404 for an unknown version", func() {
			resp, _ := do("POST", "/v1/versions/v000099/activate", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("refuses to delete the live version", func() {
			resp, _ := do("DELETE", "/v1/versions/v000001", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("deletes a non-live version", func() {
			resp, body := do("DELETE", "/v1/versions/v000002", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["deleted"]).To(Equal("v000002"))

			_, err := store.Version("v000002")
			Expect(err).To(MatchError(index.ErrNotFound))
		})

		It("prunes versions beyond the keep window", func() {
			do("POST", "/v1/ingest", nil)

			resp, body := do("POST", "/v1/versions/prune", map[string]any{"keep": 1})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["retired"]).To(ConsistOf("v000002"))
		})

		It("falls back to the retention default when keep is omitted", func() {
			do("POST", "/v1/ingest", nil)

			resp, body := do("POST", "/v1/versions/prune", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["retired"]).To(BeEmpty())

			Expect(store.Versions()).To(HaveLen(3))
		})

		It("treats keep zero as the retention default", func() {
			resp, body := do("POST", "/v1/versions/prune", map[string]any{"keep": 0})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["retired"]).To(BeEmpty())
		})
	})
})
