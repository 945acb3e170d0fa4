package storage

import (
	"context"
	"errors"
)

// RetrievalTier selects the speed/cost class of a cold-storage
// retrieval.
type RetrievalTier string

const (
	// TierExpedited is the fast, capacity-limited tier. Cold storage may
	// refuse it under load.
	TierExpedited RetrievalTier = "Expedited"
	// TierStandard is the slow tier that is always available.
	TierStandard RetrievalTier = "Standard"
)

// ErrInsufficientCapacity signals that the requested retrieval tier has
// no capacity right now and the caller should fall back to a slower
// one.
var ErrInsufficientCapacity = errors.New("insufficient retrieval capacity")

// ColdStore is the archival tier. Archived objects are addressed by
// the opaque archive id the store hands out on upload; retrieval is a
// two-step initiate/fetch protocol with completion delivered out of
// band on the thaw channel.
type ColdStore interface {
	// Archive uploads bytes and returns the archive id.
	Archive(ctx context.Context, body []byte) (string, error)

	// InitiateRetrieval starts a retrieval job for an archive at the
	// given tier and returns the retrieval job handle. Returns
	// ErrInsufficientCapacity when the tier is exhausted.
	InitiateRetrieval(ctx context.Context, archiveID string, tier RetrievalTier) (string, error)

	// FetchRetrieval reads the output of a finished retrieval job.
	FetchRetrieval(ctx context.Context, retrievalJobID string) ([]byte, error)

	// Delete removes an archived object.
	Delete(ctx context.Context, archiveID string) error
}
