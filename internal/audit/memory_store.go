package audit

import "sync"

// InMemoryStore is the default ledger for tests and single-process use.
type InMemoryStore struct {
	mu        sync.Mutex
	batches   map[string]BatchRecord
	order     []string
	decisions map[string][]DecisionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		batches:   make(map[string]BatchRecord),
		decisions: make(map[string][]DecisionRecord),
	}
}

func (s *InMemoryStore) PutRun(batch BatchRecord, decisions []DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.BatchID]; !exists {
		s.order = append(s.order, batch.BatchID)
	}
	s.batches[batch.BatchID] = batch
	s.decisions[batch.BatchID] = append([]DecisionRecord(nil), decisions...)
	return nil
}

func (s *InMemoryStore) GetBatch(batchID string) (BatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	return b, ok
}

func (s *InMemoryStore) ListBatches(limit int) ([]BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BatchRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.batches[s.order[i]])
	}
	return out, nil
}

func (s *InMemoryStore) ListDecisions(batchID string) ([]DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DecisionRecord(nil), s.decisions[batchID]...), nil
}
