package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ppiankov/veracity/internal/model"
)

// Memory is an in-process store. Records are deep-copied on the way in and
// out so callers never share slices with the store.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	order   []string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Replace(ctx context.Context, analysis *model.SubjectAnalysis) error {
	if err := ctx.Err(); err != nil {
		return failure("replace", err)
	}
	b, err := json.Marshal(analysis)
	if err != nil {
		return failure("encode", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[analysis.SubjectID]; !ok {
		m.order = append(m.order, analysis.SubjectID)
	}
	m.records[analysis.SubjectID] = b
	return nil
}

func (m *Memory) Get(ctx context.Context, subjectID string) (*model.SubjectAnalysis, error) {
	m.mu.RLock()
	b, ok := m.records[subjectID]
	m.mu.RUnlock()

	if !ok {
		return nil, notFound(subjectID)
	}
	return decode(b)
}

func (m *Memory) GetAll(ctx context.Context) ([]*model.SubjectAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.SubjectAnalysis, 0, len(m.order))
	for _, id := range m.order {
		a, err := decode(m.records[id])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func decode(b []byte) (*model.SubjectAnalysis, error) {
	var a model.SubjectAnalysis
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, failure("decode", err)
	}
	return &a, nil
}
