package orchestration

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "knowde-backend/pkg/errors"
)

// Request is one user prompt entering the pipeline
type Request struct {
	RequestID    string
	UserID       string
	SourcePrompt string
	CreatedAt    time.Time
}

// NewRequest validates the raw inputs and assigns a request id.
// An empty userId or blank prompt never starts a run.
func NewRequest(userID, prompt string) (*Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.NewInvalidRequestError("userId is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, pkgerrors.NewInvalidRequestError("prompt cannot be empty")
	}

	return &Request{
		RequestID:    uuid.New().String(),
		UserID:       userID,
		SourcePrompt: strings.TrimSpace(prompt),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Entry is one role's recorded output in the shared run context
type Entry struct {
	RoleName  string
	Timestamp time.Time
	Payload   interface{}
}

// SharedContext is the append-only record a run accumulates as roles execute.
// Entries are never mutated or removed; later roles read earlier outputs by
// role name and always see the most recent one.
type SharedContext struct {
	request *Request
	entries []Entry
}

// NewSharedContext starts an empty context for a request
func NewSharedContext(req *Request) *SharedContext {
	return &SharedContext{request: req}
}

// Request returns the originating request
func (c *SharedContext) Request() *Request {
	return c.request
}

// Append records a role's output. Appends only; prior entries are immutable.
func (c *SharedContext) Append(roleName string, payload interface{}) {
	c.entries = append(c.entries, Entry{
		RoleName:  roleName,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// Entries returns a copy of the recorded entries in append order
func (c *SharedContext) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Latest returns the most recent payload recorded under roleName
func (c *SharedContext) Latest(roleName string) (interface{}, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].RoleName == roleName {
			return c.entries[i].Payload, true
		}
	}
	return nil, false
}

// LatestAs returns the most recent payload recorded under roleName,
// typed. A missing or differently-typed entry returns false.
func LatestAs[T any](c *SharedContext, roleName string) (T, bool) {
	var zero T
	payload, ok := c.Latest(roleName)
	if !ok {
		return zero, false
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
