package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

// memStore is an in-memory UploadStore with the same transition rules as
// the PostgreSQL store.
type memStore struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]*memRecord
	clock   time.Time
}

type memRecord struct {
	upload  model.EraUpload
	content []byte
	items   []model.LineItem
}

func newMemStore() *memStore {
	return &memStore{uploads: map[uuid.UUID]*memRecord{}, clock: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreatePending(_ context.Context, u *model.EraUpload, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Status = model.StatusPending
	u.UploadedAt = m.tick()
	m.uploads[u.ID] = &memRecord{upload: *u, content: append([]byte(nil), content...)}
	return nil
}

func (m *memStore) pending(id uuid.UUID) (*memRecord, error) {
	r, ok := m.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, store.ErrNotFound)
	}
	if r.upload.Status != model.StatusPending {
		return nil, fmt.Errorf("upload %s: %w", id, store.ErrNotPending)
	}
	return r, nil
}

func (m *memStore) Finalize(_ context.Context, id uuid.UUID, t model.Totals, warnings []string, items []model.LineItem) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.pending(id)
	if err != nil {
		return time.Time{}, err
	}
	now := m.tick()
	u := &r.upload
	u.Status = model.StatusProcessed
	u.TotalClaims, u.MatchedClaims, u.UnmatchedClaims = t.TotalClaims, t.MatchedClaims, t.UnmatchedClaims
	u.TotalBilledCents, u.TotalPaidCents, u.TotalAdjustmentCents = t.TotalBilledCents, t.TotalPaidCents, t.TotalAdjustmentCents
	u.ErrorDetail = warnings
	u.ProcessedAt = &now
	r.items = append([]model.LineItem(nil), items...)
	return now, nil
}

func (m *memStore) MarkParseErrors(_ context.Context, id uuid.UUID, claims int, detail []string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(detail) == 0 {
		return time.Time{}, fmt.Errorf("empty detail")
	}
	r, err := m.pending(id)
	if err != nil {
		return time.Time{}, err
	}
	now := m.tick()
	r.upload.Status = model.StatusParseErrors
	r.upload.TotalClaims = claims
	r.upload.ErrorDetail = detail
	r.upload.ProcessedAt = &now
	return now, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*model.EraUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, store.ErrNotFound)
	}
	u := r.upload
	return &u, nil
}

func (m *memStore) LineItems(_ context.Context, id uuid.UUID) ([]model.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.uploads[id]
	if !ok {
		return []model.LineItem{}, nil
	}
	return append([]model.LineItem{}, r.items...), nil
}

func (m *memStore) List(_ context.Context, f store.Filter) ([]model.EraUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.EraUpload{}
	for _, r := range m.uploads {
		u := r.upload
		if f.PracticeID != nil && u.PracticeID != *f.PracticeID {
			continue
		}
		if f.Period != nil && u.Period() != *f.Period {
			continue
		}
		if f.Status != nil && u.Status != *f.Status {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (m *memStore) LoadPending(_ context.Context, id uuid.UUID) (*model.EraUpload, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.pending(id)
	if err != nil {
		return nil, nil, err
	}
	u := r.upload
	return &u, r.content, nil
}

func (m *memStore) ListPending(_ context.Context, _ time.Duration) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []*memRecord
	for _, r := range m.uploads {
		if r.upload.Status == model.StatusPending {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].upload.UploadedAt.Before(recs[j].upload.UploadedAt) })
	ids := make([]uuid.UUID, len(recs))
	for i, r := range recs {
		ids[i] = r.upload.ID
	}
	return ids, nil
}

func (m *memStore) FindDuplicates(_ context.Context, practiceID string, p model.Period, sha string, exclude uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range m.uploads {
		if id != exclude && r.upload.PracticeID == practiceID && r.upload.Period() == p && r.upload.ContentSHA256 == sha {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[id]; !ok {
		return fmt.Errorf("upload %s: %w", id, store.ErrNotFound)
	}
	delete(m.uploads, id)
	return nil
}

var _ UploadStore = (*memStore)(nil)
