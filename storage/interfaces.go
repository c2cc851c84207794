package storage

import (
	"context"

	"homely-scraper/models"
)

// ListingStore is the interface the pipeline persists through.
type ListingStore interface {
	// ResolveAgent finds or creates the agent identified by (name, phone)
	// and returns its durable id. Incomplete contacts are rejected with
	// ErrAgentIncomplete.
	ResolveAgent(ctx context.Context, contact models.AgentContact) (int64, error)

	// UpsertListing inserts a new listing or merges into the stored one,
	// always reassigning the agent reference.
	UpsertListing(ctx context.Context, listing *models.Listing) error

	// UpdateMedia rewrites the relocated media URL sets of a committed
	// listing. Nil slices leave the stored value untouched.
	UpdateMedia(ctx context.Context, externalID string, images, floorPlans, documents []string) error

	Close() error
}

// BlobUploader is the durable object-storage capability the media
// relocator writes through.
type BlobUploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}
