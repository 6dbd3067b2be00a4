package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
)

// RecordRepository stores copies of records keyed by id.
type RecordRepository[T any, P interface {
	*T
	domain.Entity
}] struct {
	mu      sync.RWMutex
	records map[string]T
	status  func(*T) string
}

// NewRecordRepository returns an empty repository. status extracts the
// field used by ListFilter.Status.
func NewRecordRepository[T any, P interface {
	*T
	domain.Entity
}](status func(*T) string) *RecordRepository[T, P] {
	return &RecordRepository[T, P]{records: make(map[string]T), status: status}
}

func (r *RecordRepository[T, P]) Create(_ context.Context, rec *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[P(rec).Meta().ID] = *rec
	return nil
}

func (r *RecordRepository[T, P]) FindByID(_ context.Context, id string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// List returns records newest first.
func (r *RecordRepository[T, P]) List(_ context.Context, filter ports.ListFilter) ([]*T, int64, error) {
	r.mu.RLock()
	matched := make([]*T, 0, len(r.records))
	for _, rec := range r.records {
		rec := rec
		if filter.Status != "" && r.status != nil && r.status(&rec) != filter.Status {
			continue
		}
		matched = append(matched, &rec)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return P(matched[i]).Meta().CreatedAt.After(P(matched[j]).Meta().CreatedAt)
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= len(matched) {
		return []*T{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *RecordRepository[T, P]) Replace(_ context.Context, rec *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := P(rec).Meta().ID
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	r.records[id] = *rec
	return nil
}

func (r *RecordRepository[T, P]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// Count returns the number of stored records.
func (r *RecordRepository[T, P]) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records))
}

// Each calls fn for every stored record.
func (r *RecordRepository[T, P]) Each(fn func(*T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		rec := rec
		fn(&rec)
	}
}
