package index

import (
	"fmt"
	"time"
)

// Status is a version's lifecycle state.
type Status string

const (
	// StatusBuilding marks a version still accepting records.
	StatusBuilding Status = "BUILDING"

	// StatusReady marks a finalized, immutable, queryable version.
	StatusReady Status = "READY"

	// StatusFailed marks a version whose ingestion failed. Terminal.
	StatusFailed Status = "FAILED"

	// StatusRetired marks a version whose records have been dropped by
	// retention. The manifest entry remains for history.
	StatusRetired Status = "RETIRED"
)

// Version describes one ingestion snapshot.
type Version struct {
	// ID is the monotonically assigned version identifier, e.g. "v000042".
	ID string `toml:"id" json:"id"`

	// Collection is the vector driver collection holding this version's
	// records.
	Collection string `toml:"collection" json:"collection"`

	Status Status `toml:"status" json:"status"`

	// Dimensions is the embedding dimensionality fixed at creation.
	Dimensions int `toml:"dimensions" json:"dimensions"`

	// Records is the number of embedding records appended so far.
	Records int `toml:"records" json:"records"`

	CreatedAt   time.Time `toml:"created_at" json:"created_at"`
	FinalizedAt time.Time `toml:"finalized_at,omitempty" json:"finalized_at,omitempty"`
}

// versionID formats a sequence number as a version identifier.
func versionID(seq uint64) string {
	return fmt.Sprintf("v%06d", seq)
}

// collectionName derives the driver collection name for a version id.
func collectionName(id string) string {
	return "corpus_" + id
}
