// Package chunker splits raw document text into overlapping windows suitable
// for embedding and similarity retrieval. Offsets are rune-based so they stay
// meaningful for multi-byte text.
package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for chunking parameters that can never
	// produce a valid split, e.g. overlap >= max size.
	ErrInvalidConfig = errors.New("invalid chunking configuration")
)

// Chunk is a bounded window of a document's text. Start and End are rune
// offsets into the original document ([Start, End)), kept for citation.
type Chunk struct {
	DocumentID string
	Source     string
	Seq        int
	Start      int
	End        int
	Text       string
}

// ID returns the chunk's stable identifier within its document.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%d", c.DocumentID, c.Seq)
}

// Chunker produces fixed-size overlapping chunks. It is stateless and safe
// for concurrent use.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the window parameters and returns a Chunker.
// maxSize must be positive and overlap must be non-negative and smaller
// than maxSize, otherwise ErrInvalidConfig is returned.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrInvalidConfig, overlap, maxSize)
	}

	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the configured window size in runes.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split windows text into chunks of at most maxSize runes, with each window
// after the first starting maxSize-overlap runes after the previous one.
// The final chunk may be shorter. An empty text yields zero chunks; callers
// decide whether that is worth flagging.
func (c *Chunker) Split(docID, source, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.maxSize - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.maxSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			DocumentID: docID,
			Source:     source,
			Seq:        len(chunks),
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
