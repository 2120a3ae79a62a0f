package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
)

// ============================================================================
// MOCK EVENT STORE
// ============================================================================

type MockEventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]domain.Event
	seq    int64

	// For assertions
	AppendCalls int
	AppendErr   error
	LoadErr     error

	// ConflictsBeforeAppend makes the next N appends fail with a
	// concurrency conflict
	ConflictsBeforeAppend int
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		events: make(map[uuid.UUID][]domain.Event),
	}
}

func (m *MockEventStore) Append(ctx context.Context, alertID uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	if m.ConflictsBeforeAppend > 0 {
		m.ConflictsBeforeAppend--
		return nil, domain.ErrConcurrencyConflict
	}
	if int64(len(m.events[alertID])) != expectedVersion {
		return nil, domain.ErrConcurrencyConflict
	}
	stored := make([]domain.Event, len(events))
	for i, e := range events {
		m.seq++
		e.Sequence = m.seq
		stored[i] = e
	}
	m.events[alertID] = append(m.events[alertID], stored...)
	return stored, nil
}

func (m *MockEventStore) Load(ctx context.Context, alertID uuid.UUID) ([]domain.Event, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Event(nil), m.events[alertID]...), nil
}

func (m *MockEventStore) LoadAfter(ctx context.Context, afterSequence int64, limit int) ([]domain.Event, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []domain.Event
	for _, evs := range m.events {
		for _, e := range evs {
			if e.Sequence > afterSequence {
				all = append(all, e)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Sequence < all[j].Sequence })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Events returns the stored history of one alert
func (m *MockEventStore) Events(alertID uuid.UUID) []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Event(nil), m.events[alertID]...)
}

// ============================================================================
// MOCK EVENT PUBLISHER
// ============================================================================

type MockEventPublisher struct {
	mu         sync.Mutex
	Published  []domain.Event
	PublishErr error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, events...)
	return nil
}

// ============================================================================
// MOCK READ STORE
// ============================================================================

type MockReadStore struct {
	mu   sync.RWMutex
	docs map[string]domain.AlertDocument

	// For assertions
	LastQuery   domain.AlertQuery
	ResetCalled bool
	SearchErr   error
	GetErr      error
}

func NewMockReadStore() *MockReadStore {
	return &MockReadStore{
		docs: make(map[string]domain.AlertDocument),
	}
}

// AddDocument seeds a document
func (m *MockReadStore) AddDocument(doc domain.AlertDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.AlertID] = doc
}

func (m *MockReadStore) Upsert(ctx context.Context, doc domain.AlertDocument) error {
	m.AddDocument(doc)
	return nil
}

func (m *MockReadStore) Get(ctx context.Context, alertID string) (*domain.AlertDocument, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.docs[alertID]; ok {
		return &doc, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *MockReadStore) Update(ctx context.Context, update domain.DocumentUpdate) error {
	return nil
}

func (m *MockReadStore) BulkUpdate(ctx context.Context, updates []domain.DocumentUpdate) error {
	return nil
}

func (m *MockReadStore) Search(ctx context.Context, query domain.AlertQuery) (*domain.DocumentPage, error) {
	m.mu.Lock()
	m.LastQuery = query
	m.mu.Unlock()
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []domain.AlertDocument
	for _, doc := range m.docs {
		if query.Matches(doc) {
			items = append(items, doc)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := int64(len(items))
	start := query.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + query.Limit
	if end > len(items) {
		end = len(items)
	}
	return &domain.DocumentPage{Items: items[start:end], Total: total, Page: query.Page, Limit: query.Limit}, nil
}

func (m *MockReadStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalled = true
	m.docs = make(map[string]domain.AlertDocument)
	return nil
}

// ============================================================================
// MOCK WORKFLOW STARTER
// ============================================================================

type MockWorkflowStarter struct {
	StartCalled bool
	StartErr    error
	Result      port.RebuildResult
}

func NewMockWorkflowStarter() *MockWorkflowStarter {
	return &MockWorkflowStarter{
		Result: port.RebuildResult{
			Mode:       port.RebuildModeWorkflow,
			WorkflowID: "rebuild-alert-projection",
			RunID:      "run-1",
		},
	}
}

func (m *MockWorkflowStarter) StartRebuild(ctx context.Context) (*port.RebuildResult, error) {
	m.StartCalled = true
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	result := m.Result
	return &result, nil
}

// ============================================================================
// MOCK SUBSCRIPTION RESETTER
// ============================================================================

type MockSubscriptionResetter struct {
	ResetSubscriber string
	ResetErr        error
	Replayed        int64
}

func NewMockSubscriptionResetter() *MockSubscriptionResetter {
	return &MockSubscriptionResetter{}
}

func (m *MockSubscriptionResetter) Reset(ctx context.Context, subscriber string) (int64, error) {
	m.ResetSubscriber = subscriber
	if m.ResetErr != nil {
		return 0, m.ResetErr
	}
	return m.Replayed, nil
}
