package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/go-faster/errors"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// ReadStore keeps alert documents in process memory. Partial updates are
// merged at the top level of the document's JSON form. An update carrying a
// "version" field no newer than the stored document is ignored.
type ReadStore struct {
	mu   sync.RWMutex
	docs map[string]domain.AlertDocument
}

// NewReadStore creates an empty in-memory read store
func NewReadStore() *ReadStore {
	return &ReadStore{docs: make(map[string]domain.AlertDocument)}
}

func (s *ReadStore) Upsert(ctx context.Context, doc domain.AlertDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied, err := roundTrip(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.AlertID] = copied
	return nil
}

func (s *ReadStore) Get(ctx context.Context, alertID string) (*domain.AlertDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[alertID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copied, err := roundTrip(doc)
	if err != nil {
		return nil, err
	}
	return &copied, nil
}

func (s *ReadStore) Update(ctx context.Context, update domain.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merge(update)
}

// BulkUpdate applies every update whose document exists and reports the
// ones that were missing.
func (s *ReadStore) BulkUpdate(ctx context.Context, updates []domain.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	missing := 0
	for _, u := range updates {
		err := s.merge(u)
		switch {
		case errors.Is(err, domain.ErrDocumentNotFound):
			missing++
		case err != nil:
			return err
		}
	}
	if missing > 0 {
		return errors.Wrapf(domain.ErrDocumentNotFound, "%d of %d updates", missing, len(updates))
	}
	return nil
}

func (s *ReadStore) Search(ctx context.Context, query domain.AlertQuery) (*domain.DocumentPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = query.Normalize()

	s.mu.RLock()
	var items []domain.AlertDocument
	for _, doc := range s.docs {
		if query.Matches(doc) {
			items = append(items, doc)
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].AlertID < items[j].AlertID
	})

	total := int64(len(items))
	start := min(query.Offset(), len(items))
	end := min(start+query.Limit, len(items))

	return &domain.DocumentPage{
		Items: append([]domain.AlertDocument{}, items[start:end]...),
		Total: total,
		Page:  query.Page,
		Limit: query.Limit,
	}, nil
}

func (s *ReadStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]domain.AlertDocument)
	return nil
}

// Len returns the number of stored documents
func (s *ReadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *ReadStore) merge(update domain.DocumentUpdate) error {
	doc, ok := s.docs[update.AlertID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if version, ok := updateVersion(update.Fields); ok && version <= doc.Version {
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errors.Wrap(err, "decode document")
	}
	for k, v := range update.Fields {
		b, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "encode field %q", k)
		}
		fields[k] = b
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encode merged document")
	}
	var merged domain.AlertDocument
	if err := json.Unmarshal(raw, &merged); err != nil {
		return errors.Wrap(err, "decode merged document")
	}
	s.docs[update.AlertID] = merged
	return nil
}

// updateVersion reads the optional "version" field of a partial update
func updateVersion(fields map[string]any) (int64, bool) {
	switch v := fields["version"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// roundTrip detaches doc from caller-owned maps and slices
func roundTrip(doc domain.AlertDocument) (domain.AlertDocument, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.AlertDocument{}, errors.Wrap(err, "encode document")
	}
	var copied domain.AlertDocument
	if err := json.Unmarshal(raw, &copied); err != nil {
		return domain.AlertDocument{}, errors.Wrap(err, "decode document")
	}
	return copied, nil
}
