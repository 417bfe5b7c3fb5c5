// Package qdrant provides a Qdrant vector driver over its gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	qdrantgo "github.com/qdrant/go-client/qdrant"

	"github.com/inkwellco/corpus/pkg/vector"
)

// Driver implements vector.Driver against a Qdrant server.
type Driver struct {
	client *qdrantgo.Client
	logger *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server hostname.
	Host string

	// Port is the Qdrant gRPC port (usually 6334).
	Port int

	// APIKey authenticates requests when the server requires it.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool
}

// pointNamespace seeds deterministic point UUIDs so re-adding the same
// chunk id maps to the same point.
var pointNamespace = uuid.MustParse("8d6a32e1-55c4-4b0a-9b2e-0f35c9a1d7e4")

// NewDriver connects to a Qdrant server.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Port == 0 {
		c.Port = 6334
	}

	client, err := qdrantgo.NewClient(&qdrantgo.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	logger.Info("connected to Qdrant", "host", c.Host, "port", c.Port)

	return &Driver{client: client, logger: logger}, nil
}

// CreateCollection creates a cosine-distance collection.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", vector.ErrDimension, dimensions)
	}

	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", vector.ErrExists, name)
	}

	err = d.client.CreateCollection(ctx, &qdrantgo.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrantgo.NewVectorsConfig(&qdrantgo.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrantgo.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	d.logger.Debug("created qdrant collection",
		"collection", name,
		"dimensions", dimensions,
	)

	return nil
}

// DropCollection deletes a collection.
func (d *Driver) DropCollection(ctx context.Context, name string) error {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}

	if err := d.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	d.logger.Debug("dropped qdrant collection", "collection", name)

	return nil
}

// Add upserts records as points with chunk metadata in the payload.
func (d *Driver) Add(ctx context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrantgo.PointStruct, len(records))
	for i, r := range records {
		pointID := uuid.NewSHA1(pointNamespace, []byte(r.ID))
		points[i] = &qdrantgo.PointStruct{
			Id:      qdrantgo.NewIDUUID(pointID.String()),
			Vectors: qdrantgo.NewVectors(r.Embedding...),
			Payload: qdrantgo.NewValueMap(map[string]any{
				"chunk_id": r.ID,
				"doc_id":   r.DocumentID,
				"source":   r.Source,
				"seq":      int64(r.Seq),
				"start":    int64(r.Start),
				"end":      int64(r.End),
				"text":     r.Text,
			}),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrantgo.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           qdrantgo.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points to %s: %w", name, err)
	}

	d.logger.Debug("added records to qdrant",
		"collection", name,
		"count", len(records),
	)

	return nil
}

// Query returns the topK most similar records.
func (d *Driver) Query(ctx context.Context, name string, embedding []float32, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qdrantgo.QueryPoints{
		CollectionName: name,
		Query:          qdrantgo.NewQuery(embedding...),
		Limit:          qdrantgo.PtrOf(uint64(topK)),
		WithPayload:    qdrantgo.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	results := make([]vector.Result, 0, len(points))
	for _, p := range points {
		rec := vector.Record{}
		payload := p.GetPayload()
		if v, ok := payload["chunk_id"]; ok {
			rec.ID = v.GetStringValue()
		}
		if v, ok := payload["doc_id"]; ok {
			rec.DocumentID = v.GetStringValue()
		}
		if v, ok := payload["source"]; ok {
			rec.Source = v.GetStringValue()
		}
		if v, ok := payload["seq"]; ok {
			rec.Seq = int(v.GetIntegerValue())
		}
		if v, ok := payload["start"]; ok {
			rec.Start = int(v.GetIntegerValue())
		}
		if v, ok := payload["end"]; ok {
			rec.End = int(v.GetIntegerValue())
		}
		if v, ok := payload["text"]; ok {
			rec.Text = v.GetStringValue()
		}

		results = append(results, vector.Result{
			Record: rec,
			// Qdrant reports cosine similarity directly.
			Score: p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		"collection", name,
		"results", len(results),
	)

	return results, nil
}

// Count returns the number of points in a collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	n, err := d.client.Count(ctx, &qdrantgo.CountPoints{
		CollectionName: name,
		Exact:          qdrantgo.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", name, err)
	}
	return int(n), nil
}

// Close closes the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
