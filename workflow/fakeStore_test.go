package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mmdatafocus/po_import/reconcile"
)

type fakeStore struct {
	mu      sync.Mutex
	tables  map[string][]reconcile.Record
	seq     int
	creates map[string]int
	updates map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:  map[string][]reconcile.Record{},
		creates: map[string]int{},
		updates: map[string]int{},
	}
}

func wire(fields reconcile.FieldMap) map[string]any {
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

func (s *fakeStore) seed(table string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("rec%03d", s.seq)
	s.tables[table] = append(s.tables[table], reconcile.Record{ID: id, Fields: fields})
	return id
}

func (s *fakeStore) records(table string) []reconcile.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reconcile.Record(nil), s.tables[table]...)
}

func (s *fakeStore) Find(ctx context.Context, table string, filter reconcile.Filter, fields []string) ([]reconcile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reconcile.Record
	for _, rec := range s.tables[table] {
		if filter.Matches(rec.Fields) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, table string, fields reconcile.FieldMap) (reconcile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.creates[table]++
	rec := reconcile.Record{ID: fmt.Sprintf("rec%03d", s.seq), Fields: wire(fields)}
	s.tables[table] = append(s.tables[table], rec)
	return rec, nil
}

func (s *fakeStore) Update(ctx context.Context, table string, id string, fields reconcile.FieldMap) (reconcile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[table]++
	for i, rec := range s.tables[table] {
		if rec.ID == id {
			for name, v := range wire(fields) {
				rec.Fields[name] = v
			}
			s.tables[table][i] = rec
			return rec, nil
		}
	}
	return reconcile.Record{}, fmt.Errorf("record %s not found", id)
}
