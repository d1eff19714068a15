package app_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
)

// fakeSchemaStore implements ports.SchemaStore in memory.
type fakeSchemaStore struct {
	mu       sync.Mutex
	tables   []string
	listErr  error
	applyErr error
	lists    int
}

func newFakeSchemaStore(tables ...string) *fakeSchemaStore {
	return &fakeSchemaStore{tables: tables}
}

func (f *fakeSchemaStore) ListEntityNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]string(nil), f.tables...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeSchemaStore) ApplyDefinition(ctx context.Context, def entity.Definition) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stmt := def.CreateStatement()
	if f.applyErr != nil {
		return stmt, f.applyErr
	}
	for _, t := range f.tables {
		if t == def.TableName() {
			return stmt, fmt.Errorf("%w: table %s already exists", ports.ErrStore, t)
		}
	}
	f.tables = append(f.tables, def.TableName())
	return stmt, nil
}

func (f *fakeSchemaStore) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeSchemaStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// fakeUserStore implements ports.UserStore in memory.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]ports.User
	order []string
	err   error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]ports.User)}
}

func (f *fakeUserStore) Get(ctx context.Context, id string) (ports.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ports.User{}, ports.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Create(ctx context.Context, u ports.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return ports.ErrDuplicate
		}
	}
	f.users[u.ID] = u
	f.order = append(f.order, u.ID)
	return nil
}

func (f *fakeUserStore) Update(ctx context.Context, u ports.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return ports.ErrNotFound
	}
	for id, existing := range f.users {
		if id != u.ID && existing.Username == u.Username {
			return ports.ErrDuplicate
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ports.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]ports.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ports.User{}
	for _, id := range f.order {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// recordingMetrics implements app.Metrics.
type recordingMetrics struct {
	mu        sync.Mutex
	reconfigs []string
	live      int
	mutations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{mutations: make(map[string]int)}
}

func (m *recordingMetrics) ObserveReconfiguration(message, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconfigs = append(m.reconfigs, message+"/"+outcome)
}

func (m *recordingMetrics) SetLiveListeners(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = n
}

func (m *recordingMetrics) ObserveSchemaMutation(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations[outcome]++
}

func (m *recordingMetrics) mutationCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations[outcome]
}
