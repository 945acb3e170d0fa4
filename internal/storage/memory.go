package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryObjectStore is a map-backed hot tier for tests and local runs.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ ObjectStore = (*MemoryObjectStore)(nil)

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *MemoryObjectStore) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryObjectStore) PutObject(_ context.Context, bucket, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, key)] = data
	return nil
}

func (s *MemoryObjectStore) DeleteObject(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, key))
	return nil
}

// Exists reports whether an object is present. Test helper.
func (s *MemoryObjectStore) Exists(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectKey(bucket, key)]
	return ok
}

// MemoryColdStore is a map-backed cold tier. Retrieval jobs complete
// instantly; the caller simulates the out-of-band thaw notification.
type MemoryColdStore struct {
	mu         sync.Mutex
	archives   map[string][]byte
	retrievals map[string]string // retrieval job id -> archive id

	// FailExpedited makes the fast tier report capacity exhaustion,
	// forcing callers down the tier-fallback path.
	FailExpedited bool
}

var _ ColdStore = (*MemoryColdStore)(nil)

func NewMemoryColdStore() *MemoryColdStore {
	return &MemoryColdStore{
		archives:   make(map[string][]byte),
		retrievals: make(map[string]string),
	}
}

func (s *MemoryColdStore) Archive(_ context.Context, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveID := uuid.NewString()
	s.archives[archiveID] = append([]byte(nil), body...)
	return archiveID, nil
}

func (s *MemoryColdStore) InitiateRetrieval(_ context.Context, archiveID string, tier RetrievalTier) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailExpedited && tier == TierExpedited {
		return "", ErrInsufficientCapacity
	}
	if _, ok := s.archives[archiveID]; !ok {
		return "", fmt.Errorf("archive %s not found", archiveID)
	}

	retrievalJobID := uuid.NewString()
	s.retrievals[retrievalJobID] = archiveID
	return retrievalJobID, nil
}

func (s *MemoryColdStore) FetchRetrieval(_ context.Context, retrievalJobID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveID, ok := s.retrievals[retrievalJobID]
	if !ok {
		return nil, fmt.Errorf("retrieval job %s not found", retrievalJobID)
	}
	data, ok := s.archives[archiveID]
	if !ok {
		return nil, fmt.Errorf("archive %s not found", archiveID)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryColdStore) Delete(_ context.Context, archiveID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, archiveID)
	return nil
}

// Retrievals snapshots the initiated retrieval jobs as a map of
// retrieval job id to archive id. Test helper.
func (s *MemoryColdStore) Retrievals() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.retrievals))
	for k, v := range s.retrievals {
		out[k] = v
	}
	return out
}

// Count reports the number of archived objects. Test helper.
func (s *MemoryColdStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.archives)
}

// Has reports whether an archive id is present. Test helper.
func (s *MemoryColdStore) Has(archiveID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.archives[archiveID]
	return ok
}
