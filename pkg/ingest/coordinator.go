// Package ingest orchestrates chunk -> embed -> store for document batches.
//
// Each batch builds exactly one new version. Documents are processed by a
// worker pool since embedding dominates wall time; per-document failures
// are collected into the report instead of aborting the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellco/corpus/pkg/chunker"
	"github.com/inkwellco/corpus/pkg/embeddings"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/source"
	"github.com/inkwellco/corpus/pkg/vector"
)

var (
	defaultNumWorkers uint = 3
	defaultMaxRetries      = 3
	defaultRetryDelay      = 500 * time.Millisecond
)

// ErrBatchFailed indicates no document in the batch could be ingested.
var ErrBatchFailed = errors.New("ingestion batch failed")

// Failure records one document that could not be ingested.
type Failure struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
}

// Report summarizes one ingestion batch.
type Report struct {
	// BatchID uniquely identifies this run.
	BatchID string `json:"batch_id"`

	// VersionID is the version this batch built.
	VersionID string `json:"version_id"`

	// Succeeded lists ids of documents that contributed records.
	Succeeded []string `json:"succeeded"`

	// Failed lists documents that could not be chunked or embedded.
	Failed []Failure `json:"failed,omitempty"`

	// Empty lists documents that yielded zero chunks. Flagged, not failed.
	Empty []string `json:"empty,omitempty"`

	// Records is the total number of embedding records stored.
	Records int `json:"records"`

	Duration time.Duration `json:"duration"`
}

// Coordinator runs ingestion batches against a store.
type Coordinator struct {
	store      *index.Store
	embedder   embeddings.Embedder
	chunker    *chunker.Chunker
	logger     *slog.Logger
	numWorkers uint
	maxRetries int
	retryDelay time.Duration
}

// Opts configures a Coordinator.
type Opts struct {
	// Store receives the new version and its records.
	Store *index.Store

	// Embedder converts chunk text into vectors.
	Embedder embeddings.Embedder

	// Chunker splits documents. Its configuration fixes chunk size and
	// overlap for every batch this coordinator runs.
	Chunker *chunker.Chunker

	// NumWorkers is the number of documents embedded in parallel.
	NumWorkers uint

	// MaxRetries bounds embedding retries per chunk. Transient embedder
	// errors back off with doubling delays.
	MaxRetries int

	// RetryDelay is the initial backoff delay.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(o Opts) (*Coordinator, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if o.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if o.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if o.NumWorkers == 0 {
		o.NumWorkers = defaultNumWorkers
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}

	return &Coordinator{
		store:      o.Store,
		embedder:   o.Embedder,
		chunker:    o.Chunker,
		logger:     o.Logger,
		numWorkers: o.NumWorkers,
		maxRetries: o.MaxRetries,
		retryDelay: o.RetryDelay,
	}, nil
}

// docResult is one worker's outcome for a single document.
type docResult struct {
	doc     source.Document
	records int
	empty   bool
	err     error
}

// IngestBatch builds a new version from the given documents.
//
// At least one contributing document finalizes the version READY; a batch
// where every document fails marks it FAILED and returns ErrBatchFailed
// alongside the report. Cancellation marks the version FAILED so it can
// never become live.
func (c *Coordinator) IngestBatch(ctx context.Context, docs []source.Document) (*Report, error) {
	start := time.Now()

	versionID, err := c.store.CreateVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating version: %w", err)
	}

	report := &Report{
		BatchID:   uuid.NewString(),
		VersionID: versionID,
	}

	c.logger.Info("starting ingestion batch",
		"batch_id", report.BatchID,
		"version", versionID,
		"documents", len(docs),
	)

	jobs := make(chan source.Document)
	results := make(chan docResult, len(docs))

	var wg sync.WaitGroup
	wg.Add(int(c.numWorkers))
	for i := uint(0); i < c.numWorkers; i++ {
		go func() {
			defer wg.Done()
			for doc := range jobs {
				results <- c.processDocument(ctx, versionID, doc)
			}
		}()
	}

	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		switch {
		case res.err != nil:
			report.Failed = append(report.Failed, Failure{
				DocumentID: res.doc.ID,
				Source:     res.doc.Source,
				Reason:     res.err.Error(),
			})
			c.logger.Warn("document failed",
				"batch_id", report.BatchID,
				"document", res.doc.ID,
				"source", res.doc.Source,
				"error", res.err,
			)
		case res.empty:
			report.Empty = append(report.Empty, res.doc.ID)
			c.logger.Warn("document yielded no chunks",
				"batch_id", report.BatchID,
				"document", res.doc.ID,
				"source", res.doc.Source,
			)
		default:
			report.Succeeded = append(report.Succeeded, res.doc.ID)
			report.Records += res.records
		}
	}

	if err := ctx.Err(); err != nil {
		if failErr := c.store.MarkFailed(context.WithoutCancel(ctx), versionID); failErr != nil {
			c.logger.Error("marking cancelled version failed",
				"version", versionID,
				"error", failErr,
			)
		}
		report.Duration = time.Since(start)
		return report, fmt.Errorf("batch cancelled: %w", err)
	}

	if len(report.Succeeded) == 0 {
		if failErr := c.store.MarkFailed(ctx, versionID); failErr != nil {
			c.logger.Error("marking version failed",
				"version", versionID,
				"error", failErr,
			)
		}
		report.Duration = time.Since(start)
		return report, fmt.Errorf("%w: 0 of %d documents succeeded", ErrBatchFailed, len(docs))
	}

	if err := c.store.Finalize(ctx, versionID); err != nil {
		return report, fmt.Errorf("finalizing version %s: %w", versionID, err)
	}

	report.Duration = time.Since(start)

	c.logger.Info("completed ingestion batch",
		"batch_id", report.BatchID,
		"version", versionID,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"empty", len(report.Empty),
		"records", report.Records,
		"duration", report.Duration,
	)

	return report, nil
}

// processDocument chunks and embeds one document, appending its records to
// the version in a single call.
func (c *Coordinator) processDocument(ctx context.Context, versionID string, doc source.Document) docResult {
	chunks := c.chunker.Split(doc.ID, doc.Source, doc.Text)
	if len(chunks) == 0 {
		return docResult{doc: doc, empty: true}
	}

	records := make([]vector.Record, 0, len(chunks))
	for _, ch := range chunks {
		embedding, err := c.embedWithRetry(ctx, ch.Text)
		if err != nil {
			return docResult{doc: doc, err: fmt.Errorf("embedding chunk %d: %w", ch.Seq, err)}
		}

		records = append(records, vector.Record{
			ID:         ch.ID(),
			DocumentID: ch.DocumentID,
			Source:     ch.Source,
			Seq:        ch.Seq,
			Start:      ch.Start,
			End:        ch.End,
			Text:       ch.Text,
			Embedding:  embedding,
		})
	}

	if err := c.store.Append(ctx, versionID, records); err != nil {
		return docResult{doc: doc, err: fmt.Errorf("appending records: %w", err)}
	}

	return docResult{doc: doc, records: len(records)}
}

// embedWithRetry retries transient embedder failures with doubling backoff.
func (c *Coordinator) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		embedding, err := c.embedder.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			c.logger.Debug("embedding attempt failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}
