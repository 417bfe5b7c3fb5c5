package config

import "github.com/inkwellco/corpus/pkg/index"

const (
	defaultStorageProvider = "memory"

	defaultAPIListen       = ":8091"
	defaultClientAPITarget = "http://localhost:8091"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultChunkMaxSize = 1000
	defaultChunkOverlap = 200

	defaultTopK          = 5
	defaultRetentionKeep = index.DefaultRetentionKeep
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Chunking: ChunkingConfig{
			MaxSize: defaultChunkMaxSize,
			Overlap: defaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
		Retention: RetentionConfig{
			Keep: defaultRetentionKeep,
		},
	}
}
