package index_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/vector"
	"github.com/inkwellco/corpus/pkg/vector/memory"
)

func record(id string, embedding ...float32) vector.Record {
	return vector.Record{
		ID:         id,
		DocumentID: "doc1",
		Source:     "a.txt",
		Text:       "text for " + id,
		Embedding:  embedding,
	}
}

var _ = Describe("Store", func() {
	var (
		store *index.Store
		dir   string
		ctx   context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ctx = context.Background()

		var err error
		store, err = index.NewStore(index.Opts{
			Driver:     memory.NewDriver(),
			Dir:        dir,
			Dimensions: 3,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewStore", func() {
		It("requires a driver", func() {
			_, err := index.NewStore(index.Opts{Dir: dir, Dimensions: 3, Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
		})

		It("requires positive dimensions", func() {
			_, err := index.NewStore(index.Opts{Driver: memory.NewDriver(), Dir: dir, Logger: logger.Nop()})
			Expect(err).To(MatchError(vector.ErrDimension))
		})

		It("creates the index directory", func() {
			nested := filepath.Join(dir, "a", "b")
			_, err := index.NewStore(index.Opts{
				Driver:     memory.NewDriver(),
				Dir:        nested,
				Dimensions: 3,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(nested).To(BeADirectory())
		})
	})

	Describe("CreateVersion", func() {
		It("allocates monotonically increasing ids", func() {
			id1, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id1).To(Equal("v000001"))

			id2, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id2).To(Equal("v000002"))
		})

		It("starts versions in BUILDING status", func() {
			id, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())

			v, err := store.Version(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Status).To(Equal(index.StatusBuilding))
			Expect(v.Records).To(Equal(0))
			Expect(v.Dimensions).To(Equal(3))
		})
	})

	Describe("Append", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("accumulates the record count", func() {
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:1", 0, 1, 0), record("doc1:2", 0, 0, 1)})).To(Succeed())

			v, err := store.Version(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Records).To(Equal(3))
		})

		It("rejects mixed dimensionalities", func() {
			err := store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0)})
			Expect(err).To(MatchError(vector.ErrDimension))
		})

		It("fails for an unknown version", func() {
			err := store.Append(ctx, "v000099", []vector.Record{record("doc1:0", 1, 0, 0)})
			Expect(err).To(MatchError(index.ErrNotFound))
		})

		It("fails with InvalidState once the version is READY", func() {
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())

			err := store.Append(ctx, id, []vector.Record{record("doc1:1", 0, 1, 0)})
			Expect(err).To(MatchError(index.ErrInvalidState))
		})

		It("accepts an empty batch as a no-op", func() {
			Expect(store.Append(ctx, id, nil)).To(Succeed())
		})
	})

	Describe("Finalize", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("transitions BUILDING to READY", func() {
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())

			v, err := store.Version(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Status).To(Equal(index.StatusReady))
			Expect(v.FinalizedAt).NotTo(BeZero())
		})

		It("refuses a version with no records", func() {
			err := store.Finalize(ctx, id)
			Expect(err).To(MatchError(index.ErrInvalidState))
		})

		It("refuses a failed version", func() {
			Expect(store.MarkFailed(ctx, id)).To(Succeed())
			err := store.Finalize(ctx, id)
			Expect(err).To(MatchError(index.ErrInvalidState))
		})

		It("refuses double finalization", func() {
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(MatchError(index.ErrInvalidState))
		})
	})

	Describe("MarkFailed", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("is terminal", func() {
			Expect(store.MarkFailed(ctx, id)).To(Succeed())

			err := store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})
			Expect(err).To(MatchError(index.ErrInvalidState))
		})

		It("is idempotent", func() {
			Expect(store.MarkFailed(ctx, id)).To(Succeed())
			Expect(store.MarkFailed(ctx, id)).To(Succeed())
		})

		It("refuses a READY version", func() {
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())
			Expect(store.MarkFailed(ctx, id)).To(MatchError(index.ErrInvalidState))
		})
	})

	Describe("Query", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, []vector.Record{
				record("doc1:0", 1, 0, 0),
				record("doc1:1", 0, 1, 0),
			})).To(Succeed())
		})

		It("refuses a BUILDING version", func() {
			_, err := store.Query(ctx, id, []float32{1, 0, 0}, 2)
			Expect(err).To(MatchError(index.ErrNotFound))
		})

		It("returns results from a READY version", func() {
			Expect(store.Finalize(ctx, id)).To(Succeed())

			results, err := store.Query(ctx, id, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("doc1:0"))
		})

		It("is idempotent once READY", func() {
			Expect(store.Finalize(ctx, id)).To(Succeed())

			first, err := store.Query(ctx, id, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			second, err := store.Query(ctx, id, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("fails for an unknown version", func() {
			_, err := store.Query(ctx, "v000099", []float32{1, 0, 0}, 2)
			Expect(err).To(MatchError(index.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())
		})

		It("removes a non-live READY version", func() {
			Expect(store.Delete(ctx, id)).To(Succeed())

			_, err := store.Version(id)
			Expect(err).To(MatchError(index.ErrNotFound))
		})

		It("refuses the live version", func() {
			Expect(store.Activate(ctx, id)).To(Succeed())

			err := store.Delete(ctx, id)
			Expect(err).To(MatchError(index.ErrInvalidState))
		})

		It("refuses a BUILDING version", func() {
			building, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, building)).To(MatchError(index.ErrInvalidState))
		})

		It("fails for an unknown version", func() {
			Expect(store.Delete(ctx, "v000099")).To(MatchError(index.ErrNotFound))
		})
	})

	Describe("Prune", func() {
		// readyVersion ingests one record and finalizes a fresh version.
		readyVersion := func() string {
			id, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, []vector.Record{record(id+":0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())
			return id
		}

		It("retires READY versions beyond the keep window", func() {
			v1 := readyVersion()
			v2 := readyVersion()
			v3 := readyVersion()
			v4 := readyVersion()
			Expect(store.Activate(ctx, v4)).To(Succeed())

			retired, err := store.Prune(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(retired).To(ConsistOf(v1))

			ver, err := store.Version(v1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ver.Status).To(Equal(index.StatusRetired))

			for _, id := range []string{v2, v3, v4} {
				ver, err := store.Version(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(ver.Status).To(Equal(index.StatusReady))
			}
		})

		It("never retires the live version", func() {
			v1 := readyVersion()
			readyVersion()
			readyVersion()
			Expect(store.Activate(ctx, v1)).To(Succeed())

			retired, err := store.Prune(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(retired).NotTo(ContainElement(v1))
		})

		It("makes retired versions unqueryable", func() {
			v1 := readyVersion()
			readyVersion()

			_, err := store.Prune(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Query(ctx, v1, []float32{1, 0, 0}, 1)
			Expect(err).To(MatchError(index.ErrNotFound))
		})

		It("does nothing within the keep window", func() {
			readyVersion()
			readyVersion()

			retired, err := store.Prune(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(retired).To(BeEmpty())
		})
	})

	Describe("persistence", func() {
		It("restores the catalog and live pointer on reopen", func() {
			id, err := store.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, []vector.Record{record("doc1:0", 1, 0, 0)})).To(Succeed())
			Expect(store.Finalize(ctx, id)).To(Succeed())
			Expect(store.Activate(ctx, id)).To(Succeed())

			reopened, err := index.NewStore(index.Opts{
				Driver:     memory.NewDriver(),
				Dir:        dir,
				Dimensions: 3,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			current, err := reopened.Current()
			Expect(err).NotTo(HaveOccurred())
			Expect(current).To(Equal(id))

			versions := reopened.Versions()
			Expect(versions).To(HaveLen(1))
			Expect(versions[0].Status).To(Equal(index.StatusReady))
			Expect(versions[0].Records).To(Equal(1))

			next, err := reopened.CreateVersion(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal("v000002"))
		})
	})
})
