package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notesummarizer/internal/workspace"
)

// ErrNotFound is returned for unknown or expired workspace IDs.
var ErrNotFound = errors.New("store: workspace not found")

// Factory builds an empty workspace for a new ID.
type Factory func(id string) *workspace.Workspace

// WorkspaceStore keeps workspaces in memory, keyed by a random ID.
type WorkspaceStore struct {
	mu    sync.Mutex
	items map[string]*workspace.Workspace

	newWorkspace Factory
	ttl          time.Duration
	now          func() time.Time
}

func NewWorkspaceStore(ttl time.Duration, factory Factory) *WorkspaceStore {
	return &WorkspaceStore{
		items:        make(map[string]*workspace.Workspace),
		newWorkspace: factory,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Create registers a new empty workspace.
func (s *WorkspaceStore) Create(ctx context.Context) (*workspace.Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	ws := s.newWorkspace(id)
	ws.Touch(s.now())

	s.mu.Lock()
	s.items[id] = ws
	n := len(s.items)
	s.mu.Unlock()

	slog.Debug("creating workspace", "workspace_id", id, "active", n)
	return ws, nil
}

// Get returns the workspace and records the access.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ws, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	ws.Touch(s.now())
	return ws, nil
}

// DeleteExpired removes workspaces idle for longer than the TTL. Workspaces
// with an operation in flight are kept.
func (s *WorkspaceStore) DeleteExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ws := range s.items {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		lastSeen, busy := ws.IdleSince()
		if busy || lastSeen.After(cutoff) {
			continue
		}
		delete(s.items, id)
		removed++
	}
	return removed, nil
}

// Len reports the number of live workspaces.
func (s *WorkspaceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close cancels every in-flight generation and drops all workspaces.
func (s *WorkspaceStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.items {
		ws.CancelGeneration()
		delete(s.items, id)
	}
}
