package embeddingutils_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	embeddingutils "github.com/inkwellco/corpus/pkg/embeddings/utils"
)

func ollamaServer(hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
}

var _ = Describe("NewEmbedder", func() {
	It("constructs an ollama embedder", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).NotTo(BeNil())
	})

	It("constructs an openai embedder", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "test-key")
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "openai"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).NotTo(BeNil())
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "carrier-pigeon"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})

var _ = Describe("Memoized", func() {
	It("constructs once and returns the same embedder on every call", func() {
		factory := embeddingutils.Memoized(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama"})

		first, err := factory()
		Expect(err).NotTo(HaveOccurred())
		second, err := factory()
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
	})

	It("caches construction errors", func() {
		factory := embeddingutils.Memoized(&embeddingutils.NewEmbedderOpts{ProviderType: "smoke-signals"})

		_, firstErr := factory()
		Expect(firstErr).To(MatchError(ContainSubstring("unsupported embedding provider")))
		_, secondErr := factory()
		Expect(secondErr).To(BeIdenticalTo(firstErr))
	})
})

var _ = Describe("Lazy", func() {
	It("defers provider construction to the first Embed call", func() {
		var hits atomic.Int32
		server := ollamaServer(&hits)
		defer server.Close()

		embedder := embeddingutils.Lazy(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			TargetURL:    server.URL,
		})
		Expect(hits.Load()).To(BeZero())

		vec, err := embedder.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(hits.Load()).To(Equal(int32(1)))
		Expect(embedder.Close()).To(Succeed())
	})

	It("surfaces the construction error on every Embed call", func() {
		embedder := embeddingutils.Lazy(&embeddingutils.NewEmbedderOpts{ProviderType: "morse-code"})

		_, firstErr := embedder.Embed(context.Background(), "hello")
		Expect(firstErr).To(MatchError(ContainSubstring("unsupported embedding provider")))
		_, secondErr := embedder.Embed(context.Background(), "hello")
		Expect(secondErr).To(BeIdenticalTo(firstErr))
	})

	It("closes cleanly when nothing was ever embedded", func() {
		embedder := embeddingutils.Lazy(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama"})
		Expect(embedder.Close()).To(Succeed())
	})
})
