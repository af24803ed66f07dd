package eventbooking

import (
	"context"
	"slices"
	"sync"
	"time"

	"trattoria/models"
)

type memStore struct {
	mu        sync.Mutex
	events    map[string]models.Event
	resources map[string]models.EventResource
	bookings  []models.EventBooking
	delay     time.Duration
}

func newMemStore(events ...models.Event) *memStore {
	m := &memStore{events: map[string]models.Event{}, resources: map[string]models.EventResource{}}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memStore) addResource(r models.EventResource) { m.resources[r.ID] = r }

func (m *memStore) Event(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (m *memStore) EventsByIDs(_ context.Context, ids []string) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ResourcesByIDs(_ context.Context, ids []string) ([]models.EventResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventResource
	for _, id := range ids {
		if r, ok := m.resources[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ResourcesNotTiedTo(_ context.Context, eventID string) ([]models.EventResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.EventResource{}
	for _, r := range m.resources {
		if !slices.Contains(r.Bookings, eventID) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.EventResource) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memStore) UserHasActiveBooking(_ context.Context, userID, eventID, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Date == date && b.Status != models.BookingCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ConfirmedAttendees(_ context.Context, eventID, date string) (int, error) {
	m.mu.Lock()
	total := 0
	for _, b := range m.bookings {
		if b.EventID == eventID && b.Date == date && b.Status == models.BookingConfirmed {
			total += b.Attendees
		}
	}
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return total, nil
}

func (m *memStore) Insert(_ context.Context, b *models.EventBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.EventBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ByUser(_ context.Context, userID string) ([]models.EventBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventBooking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookings {
		if b.ID == id && b.Status != models.BookingCancelled {
			m.bookings[i].Status = models.BookingCancelled
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) List(_ context.Context, eventID, date, status string) ([]models.EventBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventBooking
	for _, b := range m.bookings {
		if (eventID == "" || b.EventID == eventID) && (date == "" || b.Date == date) && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	return out, nil
}
