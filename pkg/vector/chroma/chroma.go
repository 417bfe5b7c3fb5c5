// Package chroma provides a Chroma vector database driver over its v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inkwellco/corpus/pkg/vector"
)

const (
	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 10 * time.Second

	collectionsPath = "%s/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
// Each collection name maps to a Chroma collection created with cosine space.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu  sync.Mutex
	ids map[string]string // collection name -> chroma collection id
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// MaxRetries is the number of connection attempts made at construction.
	MaxRetries int

	// RetryDelay is the initial delay between attempts; it doubles each
	// attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver and verifies connectivity,
// retrying while the server is still starting up.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}

	d := &Driver{
		baseURL: c.URL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
		ids:    make(map[string]string),
	}

	var lastErr error
	delay := c.RetryDelay
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		if lastErr = d.ping(context.Background()); lastErr == nil {
			logger.Info("connected to Chroma", "url", c.URL, "attempts", attempt)
			return d, nil
		}

		if attempt < c.MaxRetries {
			logger.Debug("chroma not ready, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			time.Sleep(delay)
			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}
	}

	return nil, fmt.Errorf("%w: connecting to chroma after %d attempts: %v",
		vector.ErrConnection, c.MaxRetries, lastErr)
}

// ping lists collections to check that the server answers v2 API requests.
func (d *Driver) ping(ctx context.Context) error {
	url := fmt.Sprintf(collectionsPath, d.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending ping request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chroma returned status %d", resp.StatusCode)
	}
	return nil
}

// CreateCollection creates a Chroma collection configured for cosine distance.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", vector.ErrDimension, dimensions)
	}

	if _, err := d.lookupID(ctx, name); err == nil {
		return fmt.Errorf("%w: %s", vector.ErrExists, name)
	}

	body := chromaCreateRequest{
		Name: name,
		Metadata: map[string]any{
			"hnsw:space": "cosine",
			"dimensions": dimensions,
		},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling create request: %w", err)
	}

	url := fmt.Sprintf(collectionsPath, d.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to create collection %s: status %d: %s",
			name, resp.StatusCode, string(respBody))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return fmt.Errorf("decoding create response: %w", err)
	}

	d.mu.Lock()
	d.ids[name] = collection.ID
	d.mu.Unlock()

	d.logger.Debug("created chroma collection",
		"collection", name,
		"collection_id", collection.ID,
		"dimensions", dimensions,
	)

	return nil
}

// DropCollection deletes a Chroma collection by name.
func (d *Driver) DropCollection(ctx context.Context, name string) error {
	if _, err := d.lookupID(ctx, name); err != nil {
		return err
	}

	url := fmt.Sprintf(collectionsPath+"/%s", d.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete collection %s: status %d: %s",
			name, resp.StatusCode, string(respBody))
	}

	d.mu.Lock()
	delete(d.ids, name)
	d.mu.Unlock()

	d.logger.Debug("dropped chroma collection", "collection", name)

	return nil
}

// Add stores records with their embeddings.
func (d *Driver) Add(ctx context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	collectionID, err := d.lookupID(ctx, name)
	if err != nil {
		return err
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]any, len(records))
	documents := make([]string, len(records))

	for i, r := range records {
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		documents[i] = r.Text
		metadatas[i] = map[string]any{
			"doc_id": r.DocumentID,
			"source": r.Source,
			"seq":    r.Seq,
			"start":  r.Start,
			"end":    r.End,
		}
	}

	reqBody := chromaAddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
		Documents:  documents,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling add request: %w", err)
	}

	url := fmt.Sprintf(collectionsPath+"/%s/add", d.baseURL, collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending add request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to add records: status %d: %s", resp.StatusCode, string(respBody))
	}

	d.logger.Debug("added records to chroma",
		"collection", name,
		"count", len(records),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding.
func (d *Driver) Query(ctx context.Context, name string, embedding []float32, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		topK = 10
	}

	collectionID, err := d.lookupID(ctx, name)
	if err != nil {
		return nil, err
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances", "documents"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling query request: %w", err)
	}

	url := fmt.Sprintf(collectionsPath+"/%s/query", d.baseURL, collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to query: status %d: %s", resp.StatusCode, string(respBody))
	}

	var queryResp chromaQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	var results []vector.Result

	// Only one query embedding is sent, so only the first group matters.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	for i, id := range ids {
		result := vector.Result{
			Record: vector.Record{ID: id},
		}

		if i < len(documents) {
			result.Text = documents[i]
		}

		if i < len(metadatas) && metadatas[i] != nil {
			m := metadatas[i]
			if docID, ok := m["doc_id"].(string); ok {
				result.DocumentID = docID
			}
			if source, ok := m["source"].(string); ok {
				result.Source = source
			}
			// JSON numbers decode as float64.
			if seq, ok := m["seq"].(float64); ok {
				result.Seq = int(seq)
			}
			if start, ok := m["start"].(float64); ok {
				result.Start = int(start)
			}
			if end, ok := m["end"].(float64); ok {
				result.End = int(end)
			}
		}

		// Cosine distance is in [0, 2]; similarity = 1 - distance.
		if i < len(distances) {
			result.Score = 1.0 - distances[i]
		}

		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		"collection", name,
		"results", len(results),
	)

	return results, nil
}

// Count returns the number of records in a collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	collectionID, err := d.lookupID(ctx, name)
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf(collectionsPath+"/%s/count", d.baseURL, collectionID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating count request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("failed to count: status %d: %s", resp.StatusCode, string(respBody))
	}

	var count chromaCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}

	return int(count), nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// lookupID resolves a collection name to its Chroma collection id,
// consulting the server on cache misses.
func (d *Driver) lookupID(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	if id, ok := d.ids[name]; ok {
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	url := fmt.Sprintf(collectionsPath+"/%s", d.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to get collection %s: status %d: %s",
			name, resp.StatusCode, string(respBody))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding collection response: %w", err)
	}

	d.mu.Lock()
	d.ids[name] = collection.ID
	d.mu.Unlock()

	return collection.ID, nil
}

var _ vector.Driver = (*Driver)(nil)
