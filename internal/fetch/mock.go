package fetch

import (
	"context"
	"sync"
)

// MockFetcher is an in-memory Fetcher for testing. It serves seeded records,
// counts calls per skeleton and field group, and can be told to fail.
type MockFetcher struct {
	mu      sync.Mutex
	records map[int64]*Record
	calls   map[callKey]int
	fail    map[callKey]error
	failAll error
}

type callKey struct {
	id    int64
	group FieldGroup
}

// NewMockFetcher creates an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		records: make(map[int64]*Record),
		calls:   make(map[callKey]int),
		fail:    make(map[callKey]error),
	}
}

// Seed installs the record served for a skeleton ID.
func (m *MockFetcher) Seed(id int64, rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec.Clone()
}

// FailWith makes every fetch for the given ID and group return err.
func (m *MockFetcher) FailWith(id int64, group FieldGroup, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[callKey{id, group}] = err
}

// FailAll makes every fetch return err until reset with nil.
func (m *MockFetcher) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// Calls reports how often the given ID and group have been fetched.
func (m *MockFetcher) Calls(id int64, group FieldGroup) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[callKey{id, group}]
}

// TotalCalls reports the number of per-skeleton fetches across all groups.
func (m *MockFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FetchFields serves deep copies of the seeded records. Unknown IDs fail
// with UnknownSkeletonError, matching the HTTP client's behavior.
func (m *MockFetcher) FetchFields(_ context.Context, ids []int64, group FieldGroup) (map[int64]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAll != nil {
		return nil, m.failAll
	}

	out := make(map[int64]*Record, len(ids))
	for _, id := range ids {
		key := callKey{id, group}
		m.calls[key]++
		if err := m.fail[key]; err != nil {
			return nil, err
		}
		rec, ok := m.records[id]
		if !ok {
			return nil, &UnknownSkeletonError{ID: id}
		}
		out[id] = project(rec.Clone(), group)
	}
	return out, nil
}

// project narrows a full record to the fields of one group, mirroring what a
// real server round trip would return.
func project(rec *Record, group FieldGroup) *Record {
	out := &Record{}
	switch group {
	case GroupSkeleton:
		out.Nodes = rec.Nodes
		out.Connectors = rec.Connectors
		out.Tags = rec.Tags
	case GroupName:
		out.Name = rec.Name
	case GroupAnnotations:
		out.Annotations = rec.Annotations
	case GroupReview:
		out.Review = rec.Review
	}
	return out
}

var _ Fetcher = (*MockFetcher)(nil)
