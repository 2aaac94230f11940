// Package store keeps the ordered collection of saved reports for a
// workspace. Ordering is most-recently-saved first; a save is always a
// whole-record replacement, never a field merge. Every mutation writes the
// entire sequence through the persistence port before returning, so two
// processes against one workspace resolve as last-writer-wins.
package store

import (
	"context"
	"sync"

	"pulseboard/internal/domain"
)

// Persistence is the durable side of the store: read-all/write-all of the
// report sequence under a fixed logical key. Implementations must treat an
// absent or corrupt blob as an empty sequence, never as an error.
type Persistence interface {
	ReadReports(ctx context.Context) ([]domain.Report, error)
	WriteReports(ctx context.Context, reports []domain.Report) error
}

type Store struct {
	port Persistence

	mu      sync.Mutex
	records []domain.Report
}

// Open loads the persisted sequence and returns a ready store.
func Open(ctx context.Context, port Persistence) (*Store, error) {
	records, err := port.ReadReports(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{port: port, records: records}, nil
}

// Upsert replaces any record with the same id and moves the record to the
// front of the ordering.
func (s *Store) Upsert(ctx context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Report, 0, len(s.records)+1)
	next = append(next, r.Clone())
	for _, existing := range s.records {
		if existing.ID != r.ID {
			next = append(next, existing)
		}
	}
	if err := s.port.WriteReports(ctx, next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// Delete removes the record with the given id. Absent ids are a no-op and
// never an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Report, 0, len(s.records))
	for _, existing := range s.records {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	if len(next) == len(s.records) {
		return nil
	}
	if err := s.port.WriteReports(ctx, next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// List returns the full sequence, most-recently-saved first.
func (s *Store) List() []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Report, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the record with the given id, if present.
func (s *Store) Get(id string) (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return domain.Report{}, false
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
