package sharedstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// MemoryStore keeps shared data in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]engine.SharedData
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]engine.SharedData)}
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (engine.SharedData, error) {
	s.mu.RLock()
	data, ok := s.data[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, engine.NewStateUnavailableError(fmt.Sprintf("shared data of job %s is not initialized", jobID), nil).
			WithResource(jobID)
	}
	return data.Clone()
}

func (s *MemoryStore) Set(ctx context.Context, jobID string, data engine.SharedData) error {
	cp, err := data.Clone()
	if err != nil {
		return fmt.Errorf("failed to encode shared data of job %s: %w", jobID, err)
	}

	s.mu.Lock()
	s.data[jobID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.data, jobID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of jobs holding shared data.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
