package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"knowde-backend/application/ports"
	pkgerrors "knowde-backend/pkg/errors"
)

// MemoryStore is an in-process DocumentStore for development and tests.
// Writes are immediately visible to reads, which is exactly the consistency
// the verify-read step depends on.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory document tree
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]json.RawMessage)}
}

// Get implements ports.DocumentStore
func (s *MemoryStore) Get(ctx context.Context, path string, out interface{}) error {
	s.mu.RLock()
	data, exists := s.docs[path]
	s.mu.RUnlock()

	if !exists {
		return pkgerrors.NewNotFoundError("document " + path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(err, "decoding document "+path)
	}
	return nil
}

// Set implements ports.DocumentStore
func (s *MemoryStore) Set(ctx context.Context, path string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding document "+path)
	}

	s.mu.Lock()
	s.docs[path] = data
	s.mu.Unlock()
	return nil
}

// Stream implements ports.DocumentStore. Only documents directly under the
// prefix are returned, not documents in nested collections.
func (s *MemoryStore) Stream(ctx context.Context, prefix string) ([]ports.Document, error) {
	cleaned := strings.TrimSuffix(prefix, "/") + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []ports.Document{}
	for path, data := range s.docs {
		if !strings.HasPrefix(path, cleaned) {
			continue
		}
		if strings.Contains(path[len(cleaned):], "/") {
			continue
		}
		docs = append(docs, ports.Document{Path: path, Data: data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	return docs, nil
}

// Delete removes a document; a missing path is not an error
func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored documents
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
