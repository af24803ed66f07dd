package reservation

import (
	"context"
	"slices"
	"sync"
	"time"

	"trattoria/models"
)

type memStore struct {
	mu           sync.Mutex
	tables       map[string]models.Table
	reservations []models.Reservation
	// delay widens the check-then-insert gap to expose races.
	delay time.Duration
}

func newMemStore(tables ...models.Table) *memStore {
	m := &memStore{tables: make(map[string]models.Table)}
	for _, t := range tables {
		m.tables[t.ID] = t
	}
	return m
}

func (m *memStore) BookableTables(context.Context) ([]models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Table
	for _, t := range m.tables {
		if t.Status == models.TableActive && t.OnlineBookable {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Table) int { return a.Number - b.Number })
	return out, nil
}

func (m *memStore) TablesByIDs(_ context.Context, ids []string) ([]models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Table
	for _, id := range ids {
		if t, ok := m.tables[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) Conflicts(_ context.Context, tableIDs []string, start, end time.Time) ([]models.Reservation, error) {
	m.mu.Lock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.Status != models.ReservationConfirmed || !r.Overlaps(start, end) {
			continue
		}
		if tableIDs == nil || slices.ContainsFunc(r.TableIDs, func(id string) bool { return slices.Contains(tableIDs, id) }) {
			out = append(out, r)
		}
	}
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = append(m.reservations, *r)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ByUser(_ context.Context, userID string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id string, from []string, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reservations {
		if r.ID == id && slices.Contains(from, r.Status) {
			m.reservations[i].Status = status
			m.reservations[i].UpdatedAt = at
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if (f.Date == "" || r.Date == f.Date) && (f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}
