package ports

import (
	"context"
	"encoding/json"
	"time"

	"knowde-backend/domain/events"
)

// LanguageModel is the narrow interface to the completion capability.
// Implementations must apply a per-call timeout and surface transient
// failures (including timeouts) as retryable errors; content rejections are
// non-retryable. Natural-language guidance is a parameter here, never a
// control-flow mechanism.
type LanguageModel interface {
	// Generate performs one synchronous completion call. schemaKind names the
	// contract the response is expected to satisfy so the implementation can
	// steer the model toward that shape; the caller still validates.
	Generate(ctx context.Context, prompt string, schemaKind string) (string, error)
}

// SearchResult is one ranked link from the search capability
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchProvider is the narrow interface to the web-search capability
type SearchProvider interface {
	// Search returns a finite, non-restartable ranked result list,
	// at most maxResults entries
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Document is a stored document together with its tree path
type Document struct {
	Path string
	Data json.RawMessage
}

// DocumentStore is the narrow interface to the document-tree repository.
// Get immediately after Set must observe the write (read-after-write
// consistency) so that the workflow's verify-read step is meaningful.
type DocumentStore interface {
	// Get unmarshals the document at path into out; a missing document is a
	// NOT_FOUND error
	Get(ctx context.Context, path string, out interface{}) error

	// Set writes the document at path, replacing any previous version
	Set(ctx context.Context, path string, doc interface{}) error

	// Stream returns all documents directly under the given collection prefix
	Stream(ctx context.Context, prefix string) ([]Document, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// RunLock is an acquired serialization lock for one orchestration key
type RunLock interface {
	// Release releases the lock
	Release(ctx context.Context) error
}

// RunLocker serializes orchestration runs that share a key. Two runs for the
// same user must never race on the same plan or graph, so the coordinator
// acquires a lock on the user key before either workflow starts.
type RunLocker interface {
	// Acquire blocks until the lock for key is held or ctx is done
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (RunLock, error)
}
