package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corpuslogger "github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/vector"
	"github.com/inkwellco/corpus/pkg/vector/chroma"
)

const collectionsPrefix = "/api/v2/tenants/default_tenant/databases/default_database/collections"

var _ = Describe("Driver", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = corpuslogger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)

				// Fail the first two pings to simulate Chroma still starting up.
				if attempt <= 2 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode([]map[string]string{})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(Equal(int32(3)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("collection lifecycle", func() {
		var (
			server *httptest.Server
			drv    *chroma.Driver
			ctx    context.Context

			created atomic.Int32
			dropped atomic.Int32
		)

		BeforeEach(func() {
			ctx = context.Background()
			created.Store(0)
			dropped.Store(0)

			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")

				switch {
				case r.Method == "GET" && r.URL.Path == collectionsPrefix:
					json.NewEncoder(w).Encode([]map[string]string{})

				case r.Method == "POST" && r.URL.Path == collectionsPrefix:
					created.Add(1)
					var body map[string]any
					Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
					Expect(body["metadata"]).To(HaveKeyWithValue("hnsw:space", "cosine"))
					json.NewEncoder(w).Encode(map[string]string{
						"id":   "chroma-id-1",
						"name": body["name"].(string),
					})

				case r.Method == "GET" && strings.HasPrefix(r.URL.Path, collectionsPrefix+"/corpus_v000001"):
					if created.Load() == 0 || dropped.Load() > 0 {
						http.NotFound(w, r)
						return
					}
					json.NewEncoder(w).Encode(map[string]string{
						"id":   "chroma-id-1",
						"name": "corpus_v000001",
					})

				case r.Method == "DELETE":
					dropped.Add(1)
					w.WriteHeader(http.StatusOK)

				default:
					http.NotFound(w, r)
				}
			}))

			var err error
			drv, err = chroma.NewDriver(chroma.Config{
				URL:        server.URL,
				MaxRetries: 1,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("creates a collection with cosine space", func() {
			Expect(drv.CreateCollection(ctx, "corpus_v000001", 3)).To(Succeed())
			Expect(created.Load()).To(Equal(int32(1)))
		})

		It("rejects non-positive dimensions", func() {
			err := drv.CreateCollection(ctx, "corpus_v000001", 0)
			Expect(err).To(MatchError(vector.ErrDimension))
		})

		It("rejects a duplicate collection", func() {
			Expect(drv.CreateCollection(ctx, "corpus_v000001", 3)).To(Succeed())
			err := drv.CreateCollection(ctx, "corpus_v000001", 3)
			Expect(err).To(MatchError(vector.ErrExists))
		})

		It("drops an existing collection", func() {
			Expect(drv.CreateCollection(ctx, "corpus_v000001", 3)).To(Succeed())
			Expect(drv.DropCollection(ctx, "corpus_v000001")).To(Succeed())
			Expect(dropped.Load()).To(Equal(int32(1)))
		})

		It("fails to drop an unknown collection", func() {
			err := drv.DropCollection(ctx, "corpus_v000001")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Add and Query", func() {
		var (
			server *httptest.Server
			drv    *chroma.Driver
			ctx    context.Context

			addBody map[string]any
		)

		BeforeEach(func() {
			ctx = context.Background()
			addBody = nil

			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")

				switch {
				case r.Method == "GET" && r.URL.Path == collectionsPrefix:
					json.NewEncoder(w).Encode([]map[string]string{})

				case r.Method == "GET" && r.URL.Path == collectionsPrefix+"/corpus_v000001":
					json.NewEncoder(w).Encode(map[string]string{
						"id":   "chroma-id-1",
						"name": "corpus_v000001",
					})

				case r.Method == "POST" && r.URL.Path == collectionsPrefix+"/chroma-id-1/add":
					Expect(json.NewDecoder(r.Body).Decode(&addBody)).To(Succeed())
					w.WriteHeader(http.StatusCreated)

				case r.Method == "POST" && r.URL.Path == collectionsPrefix+"/chroma-id-1/query":
					json.NewEncoder(w).Encode(map[string]any{
						"ids":       [][]string{{"doc1:0", "doc1:1"}},
						"distances": [][]float32{{0.1, 0.4}},
						"documents": [][]string{{"first chunk", "second chunk"}},
						"metadatas": [][]map[string]any{{
							{"doc_id": "doc1", "source": "a.txt", "seq": 0, "start": 0, "end": 11},
							{"doc_id": "doc1", "source": "a.txt", "seq": 1, "start": 6, "end": 18},
						}},
					})

				case r.Method == "GET" && r.URL.Path == collectionsPrefix+"/chroma-id-1/count":
					json.NewEncoder(w).Encode(2)

				default:
					http.NotFound(w, r)
				}
			}))

			var err error
			drv, err = chroma.NewDriver(chroma.Config{
				URL:        server.URL,
				MaxRetries: 1,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("sends records with documents and metadata", func() {
			recs := []vector.Record{
				{ID: "doc1:0", DocumentID: "doc1", Source: "a.txt", Seq: 0, Start: 0, End: 11, Text: "first chunk", Embedding: []float32{1, 0, 0}},
			}
			Expect(drv.Add(ctx, "corpus_v000001", recs)).To(Succeed())

			Expect(addBody["ids"]).To(ConsistOf("doc1:0"))
			Expect(addBody["documents"]).To(ConsistOf("first chunk"))
		})

		It("accepts an empty batch without a request", func() {
			Expect(drv.Add(ctx, "corpus_v000001", nil)).To(Succeed())
			Expect(addBody).To(BeNil())
		})

		It("converts cosine distances to similarity scores", func() {
			results, err := drv.Query(ctx, "corpus_v000001", []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("doc1:0"))
			Expect(results[0].Score).To(BeNumerically("~", 0.9, 1e-5))
			Expect(results[1].Score).To(BeNumerically("~", 0.6, 1e-5))
		})

		It("carries chunk metadata through", func() {
			results, err := drv.Query(ctx, "corpus_v000001", []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[1].DocumentID).To(Equal("doc1"))
			Expect(results[1].Source).To(Equal("a.txt"))
			Expect(results[1].Seq).To(Equal(1))
			Expect(results[1].Start).To(Equal(6))
			Expect(results[1].End).To(Equal(18))
			Expect(results[1].Text).To(Equal("second chunk"))
		})

		It("counts records", func() {
			n, err := drv.Count(ctx, "corpus_v000001")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})
})
