package workflow

import (
	"context"
	"fmt"
	"sync"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// InMemoryStore emulates the row lock with one mutex per workflow.
type InMemoryStore struct {
	mu        sync.RWMutex
	workflows map[id.WorkflowID]Workflow
	events    map[id.WorkflowID][]Event
	locks     map[id.WorkflowID]*sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		workflows: make(map[id.WorkflowID]Workflow),
		events:    make(map[id.WorkflowID][]Event),
		locks:     make(map[id.WorkflowID]*sync.Mutex),
	}
}

func (s *InMemoryStore) Create(_ context.Context, wf Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[wf.ID]; ok {
		return fmt.Errorf("create workflow %s: %w", wf.ID, sentinel.ErrConflict)
	}
	s.workflows[wf.ID] = wf
	s.locks[wf.ID] = &sync.Mutex{}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, workflowID id.WorkflowID) (Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[workflowID]
	if !ok {
		return Workflow{}, fmt.Errorf("get workflow %s: %w", workflowID, sentinel.ErrNotFound)
	}
	return wf, nil
}

func (s *InMemoryStore) Events(_ context.Context, workflowID id.WorkflowID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[workflowID]...), nil
}

func (s *InMemoryStore) Transition(ctx context.Context, workflowID id.WorkflowID, fn TransitionFunc) (Workflow, error) {
	s.mu.RLock()
	lock, ok := s.locks[workflowID]
	s.mu.RUnlock()
	if !ok {
		return Workflow{}, fmt.Errorf("lock workflow %s: %w", workflowID, sentinel.ErrNotFound)
	}
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, workflowID)
	if err != nil {
		return Workflow{}, err
	}
	next, event, err := fn(ctx, current)
	if err != nil {
		return Workflow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflowID] = next
	s.events[workflowID] = append(s.events[workflowID], event)
	return next, nil
}
