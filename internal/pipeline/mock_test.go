package pipeline

import (
	"context"
	"maps"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/store"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, company string) model.Lookup[string] {
	args := m.Called(ctx, company)
	return args.Get(0).(model.Lookup[string])
}

// --- Social Mock ---

type mockSocial struct {
	mock.Mock
}

func (m *mockSocial) Extract(ctx context.Context, website string) model.Lookup[model.Socials] {
	args := m.Called(ctx, website)
	return args.Get(0).(model.Lookup[model.Socials])
}

// --- Email Mock ---

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) FromWebsite(ctx context.Context, website string) model.Lookup[[]string] {
	args := m.Called(ctx, website)
	return args.Get(0).(model.Lookup[[]string])
}

func (m *mockEmail) FromCompany(ctx context.Context, company string) model.Lookup[[]string] {
	args := m.Called(ctx, company)
	return args.Get(0).(model.Lookup[[]string])
}

// --- In-memory cache store ---

type memStore[V any] struct {
	mu    sync.Mutex
	data  map[string]V
	saves int
}

func newMemStore[V any](seed map[string]V) *memStore[V] {
	if seed == nil {
		seed = make(map[string]V)
	}
	return &memStore[V]{data: seed}
}

func (s *memStore[V]) Load(context.Context) (map[string]V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.data), nil
}

func (s *memStore[V]) Save(_ context.Context, entries map[string]V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = maps.Clone(entries)
	s.saves++
	return nil
}

func (s *memStore[V]) snapshot() map[string]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.data)
}

func (s *memStore[V]) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// --- Store wrappers ---

type failingLeadsStore struct {
	store.Store
	err error
}

func (s failingLeadsStore) ListLeads(context.Context, int64) ([]model.Lead, error) {
	return nil, s.err
}
