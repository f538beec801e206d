package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

// --- Mock event store ---------------------------------------------------------

type mockEventStore struct {
	mu     sync.Mutex
	events map[string]*model.Event // "externalID/accountID" → event
	nextID int64
	err    error // forced failure for every write when set
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{events: make(map[string]*model.Event)}
}

func mirrorKey(externalID string, accountID int64) string {
	return fmt.Sprintf("%s/%d", externalID, accountID)
}

func (m *mockEventStore) UpsertMirrorEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if e.ExternalID == "" || e.AccountID == nil {
		return fmt.Errorf("mirror event %q missing external id or account", e.Title)
	}

	key := mirrorKey(e.ExternalID, *e.AccountID)
	if existing, ok := m.events[key]; ok {
		existing.Title = e.Title
		existing.Description = e.Description
		existing.StartsAt = e.StartsAt
		existing.EndsAt = e.EndsAt
		existing.AllDay = e.AllDay
		e.ID = existing.ID
		return nil
	}

	m.nextID++
	cp := *e
	cp.ID = m.nextID
	m.events[key] = &cp
	e.ID = cp.ID
	return nil
}

func (m *mockEventStore) get(externalID string, accountID int64) *model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[mirrorKey(externalID, accountID)]
}

func (m *mockEventStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// --- Mock account store -------------------------------------------------------

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[int64]*model.Account
	listErr  error
}

func newMockAccountStore(accounts ...*model.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[int64]*model.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccountStore) ListEnabledAccounts(_ context.Context, userID int64) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*model.Account
	for _, a := range m.accounts {
		if a.UserID == userID && a.Enabled {
			result = append(result, a)
		}
	}
	// Ordered by ID, like the real store.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAccountStore) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id], nil
}

func (m *mockAccountStore) UpdateCredentials(_ context.Context, id int64, c model.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account id=%d not found", id)
	}
	a.Credentials = c
	return nil
}

func (m *mockAccountStore) TouchLastSynced(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account id=%d not found", id)
	}
	a.LastSyncedAt = &at
	return nil
}

// --- Mock provider client -----------------------------------------------------

type mockProvider struct {
	mu           sync.Mutex
	events       []model.RemoteEvent
	listErr      error
	refreshed    model.Credentials
	refreshErr   error
	listCalls    int
	refreshCalls int
}

func (m *mockProvider) ListEvents(_ context.Context, _ *model.Account, _, _ time.Time) ([]model.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.RemoteEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *mockProvider) RefreshCredentials(_ context.Context, _ *model.Account) (model.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshCalls++
	if m.refreshErr != nil {
		return model.Credentials{}, m.refreshErr
	}
	return m.refreshed, nil
}
