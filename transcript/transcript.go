// Package transcript archives finished runs. Archives are write-mostly: they
// are listed for inspection but never replayed into a session.
package transcript

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/ai-devteam/message"
)

// ErrInvalidRecord is returned when a record misses its identifiers.
var ErrInvalidRecord = errors.New("transcript: record needs an id and a session id")

// Record is one finished run.
type Record struct {
	ID         string             `json:"id" bson:"_id"`
	SessionID  string             `json:"session_id" bson:"session_id"`
	Mode       string             `json:"mode" bson:"mode"`
	Request    string             `json:"request" bson:"request"`
	State      string             `json:"state" bson:"state"`
	Error      string             `json:"error,omitempty" bson:"error,omitempty"`
	Turns      []*message.Message `json:"turns" bson:"turns"`
	Result     string             `json:"result,omitempty" bson:"result,omitempty"`
	StartedAt  time.Time          `json:"started_at" bson:"started_at"`
	FinishedAt time.Time          `json:"finished_at" bson:"finished_at"`
}

// New returns a record with a fresh id.
func New(sessionID, mode, request string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Mode:      mode,
		Request:   request,
		StartedAt: time.Now(),
	}
}

// Validate checks the identifiers every store keys on.
func (r *Record) Validate() error {
	if r == nil || r.ID == "" || r.SessionID == "" {
		return ErrInvalidRecord
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := *r
	cloned.Turns = message.CloneMessages(r.Turns)
	return &cloned
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, record *Record) error
	// List returns the records of a session, oldest first.
	List(ctx context.Context, sessionID string) ([]*Record, error)
	Close() error
}

// SortByStart orders records oldest first.
func SortByStart(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*Record)}
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[record.SessionID]
	for i, existing := range list {
		if existing.ID == record.ID {
			list[i] = record.Clone()
			return nil
		}
	}
	s.records[record.SessionID] = append(list, record.Clone())
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.records[sessionID]
	out := make([]*Record, 0, len(list))
	for _, r := range list {
		out = append(out, r.Clone())
	}
	SortByStart(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// Discard drops every record.
type Discard struct{}

func (Discard) Save(context.Context, *Record) error             { return nil }
func (Discard) List(context.Context, string) ([]*Record, error) { return nil, nil }
func (Discard) Close() error                                    { return nil }
