package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// memStore mimics the record store: fields go through JSON like the real API.
type memStore struct {
	mu      sync.Mutex
	tables  map[string][]Record
	seq     int
	creates int
	updates int
	finds   int
	delay   time.Duration
	findErr error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]Record{}}
}

func toWire(fields FieldMap) map[string]any {
	b, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

func (s *memStore) seed(table string, fields FieldMap) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("rec%03d", s.seq)
	s.tables[table] = append(s.tables[table], Record{ID: id, Fields: toWire(fields)})
	return id
}

func (s *memStore) Find(ctx context.Context, table string, filter Filter, fields []string) ([]Record, error) {
	s.mu.Lock()
	s.finds++
	err := s.findErr
	var out []Record
	for _, rec := range s.tables[table] {
		if filter.Matches(rec.Fields) {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, table string, fields FieldMap) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.seq++
	rec := Record{ID: fmt.Sprintf("rec%03d", s.seq), Fields: toWire(fields)}
	s.tables[table] = append(s.tables[table], rec)
	return rec, nil
}

func (s *memStore) Update(ctx context.Context, table string, id string, fields FieldMap) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	for i, rec := range s.tables[table] {
		if rec.ID != id {
			continue
		}
		for k, v := range toWire(fields) {
			rec.Fields[k] = v
		}
		s.tables[table][i] = rec
		return rec, nil
	}
	return Record{}, fmt.Errorf("record %s not found", id)
}

func (s *memStore) counts() (creates, updates, finds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates, s.finds
}
