// Package memory provides an in-memory store.Store for tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pharma-erp/backend/internal/store"
)

type docKey struct {
	collection store.Collection
	id         string
}

// Store keeps documents as raw JSON guarded by a mutex. Update failures can
// be injected per document with FailUpdate to exercise partial-write paths.
type Store struct {
	mu       sync.RWMutex
	docs     map[docKey]json.RawMessage
	failures map[docKey]error
	updates  int
}

func New() *Store {
	return &Store{
		docs:     make(map[docKey]json.RawMessage),
		failures: make(map[docKey]error),
	}
}

// FailUpdate makes every subsequent UpdateByID for the given document return err.
func (s *Store) FailUpdate(collection store.Collection, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[docKey{collection, id}] = err
}

// UpdateCount reports how many UpdateByID calls succeeded.
func (s *Store) UpdateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

func (s *Store) GetByID(ctx context.Context, collection store.Collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey{collection, id}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (s *Store) QueryByField(ctx context.Context, collection store.Collection, fieldPath, value string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []json.RawMessage
	for key, doc := range s.docs {
		if key.collection != collection {
			continue
		}
		fields := make(map[string]any)
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", key.collection, key.id, err)
		}
		if fieldValue, ok := lookupPath(fields, fieldPath); ok && fmt.Sprintf("%v", fieldValue) == value {
			results = append(results, append(json.RawMessage(nil), doc...))
		}
	}
	return results, nil
}

func (s *Store) UpdateByID(ctx context.Context, collection store.Collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{collection, id}
	if err, ok := s.failures[key]; ok {
		return err
	}

	doc, ok := s.docs[key]
	if !ok {
		return store.ErrNotFound
	}

	merged := make(map[string]any)
	if err := json.Unmarshal(doc, &merged); err != nil {
		return fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	for name, value := range fields {
		merged[name] = value
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	s.docs[key] = body
	s.updates++
	return nil
}

func (s *Store) Put(ctx context.Context, collection store.Collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docKey{collection, id}] = body
	return nil
}

func lookupPath(fields map[string]any, fieldPath string) (any, bool) {
	parts := strings.Split(fieldPath, ".")
	var current any = fields
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

var _ store.Store = (*Store)(nil)
