package mcp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/corpus/api/mcp"
	"github.com/inkwellco/corpus/pkg/index"
	corpuslogger "github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/retrieve"
	testutils "github.com/inkwellco/corpus/pkg/utils/test"
	"github.com/inkwellco/corpus/pkg/vector/memory"
)

var _ = Describe("MCP Server", func() {
	var retriever *retrieve.Retriever

	BeforeEach(func() {
		store, err := index.NewStore(index.Opts{
			Driver:     memory.NewDriver(),
			Dir:        GinkgoT().TempDir(),
			Dimensions: 3,
			Logger:     corpuslogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		retriever, err = retrieve.NewRetriever(retrieve.Opts{
			Store:    store,
			Embedder: testutils.NewMockEmbedder(),
			Logger:   corpuslogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when retriever is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Logger: corpuslogger.Nop(),
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("retriever is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Retriever: retriever,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with the search tool", func() {
			server, err := mcp.NewServer(mcp.Config{
				Retriever: retriever,
				Logger:    corpuslogger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("creates an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server).NotTo(BeNil())
		})
	})
})
