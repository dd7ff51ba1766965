package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/codeassess/sessiond/internal/model"
)

// WorkspaceStore persists per-question drafts for one attempt. Drafts are
// local working state only; nothing in a store ever reaches the authority.
type WorkspaceStore interface {
	Get(ctx context.Context, attemptID, questionID uuid.UUID) (*model.WorkspaceState, error)
	Put(ctx context.Context, attemptID, questionID uuid.UUID, ws *model.WorkspaceState) error
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// MemoryWorkspaceStore keeps drafts in process memory. The default when
// no Redis is configured; drafts then live exactly as long as the daemon.
type MemoryWorkspaceStore struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]map[uuid.UUID]*model.WorkspaceState
}

// NewMemoryWorkspaceStore creates an empty in-memory store.
func NewMemoryWorkspaceStore() *MemoryWorkspaceStore {
	return &MemoryWorkspaceStore{
		drafts: make(map[uuid.UUID]map[uuid.UUID]*model.WorkspaceState),
	}
}

func (s *MemoryWorkspaceStore) Get(_ context.Context, attemptID, questionID uuid.UUID) (*model.WorkspaceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.drafts[attemptID][questionID]
	if !ok {
		return nil, nil
	}
	cp := *ws
	return &cp, nil
}

func (s *MemoryWorkspaceStore) Put(_ context.Context, attemptID, questionID uuid.UUID, ws *model.WorkspaceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drafts[attemptID] == nil {
		s.drafts[attemptID] = make(map[uuid.UUID]*model.WorkspaceState)
	}
	cp := *ws
	s.drafts[attemptID][questionID] = &cp
	return nil
}

func (s *MemoryWorkspaceStore) Clear(_ context.Context, attemptID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, attemptID)
	return nil
}
