package eventbooking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trattoria/models"
	"trattoria/mq"
	"trattoria/rdx"
)

func gala(max int, price float64) models.Event {
	return models.Event{ID: "E1", Title: "Gala", MaxAttendees: max, PricePerAttendee: price, IsActive: true}
}

func newTestService(store *memStore) (*Service, *mq.Recorder) {
	rec := mq.NewRecorder(nil)
	return NewService(store, rdx.NewLocalLocker(), rec), rec
}

func seed(store *memStore, user string, attendees int) {
	store.bookings = append(store.bookings, models.EventBooking{
		ID: "seed-" + user, UserID: user, EventID: "E1", Date: "2025-01-10",
		Attendees: attendees, Status: models.BookingConfirmed,
	})
}

func TestCapacityScenario(t *testing.T) {
	store := newMemStore(gala(50, 10))
	seed(store, "early", 40)
	svc, rec := newTestService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "E1", Date: "2025-01-10", Attendees: 15})
	if !errors.Is(err, ErrNotEnoughSeats) || err.Error() != "Not enough seats available" {
		t.Fatalf("expected not enough seats, got %v", err)
	}

	b, err := svc.Create(ctx, CreateInput{UserID: "u2", EventID: "E1", Date: "2025-01-10", Attendees: 10})
	if err != nil {
		t.Fatalf("10 attendees should fit: %v", err)
	}
	if b.Status != models.BookingConfirmed || b.TotalCharge != 100 {
		t.Fatalf("unexpected booking %+v", b)
	}

	_, err = svc.Create(ctx, CreateInput{UserID: "u3", EventID: "E1", Date: "2025-01-10", Attendees: 1})
	if !errors.Is(err, ErrNotEnoughSeats) {
		t.Fatalf("event is full, got %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Fatalf("expected one created event, got %d", len(rec.Events()))
	}
}

func TestCreateValidation(t *testing.T) {
	inactive := models.Event{ID: "E2", MaxAttendees: 10, IsActive: false}
	ranged := models.Event{ID: "E3", MaxAttendees: 10, IsActive: true, StartDate: "2025-01-01", EndDate: "2025-01-31"}
	store := newMemStore(gala(50, 10), inactive, ranged)
	svc, _ := newTestService(store)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"missing event", CreateInput{UserID: "u", EventID: "nope", Date: "2025-01-10", Attendees: 1}, ErrEventNotFound},
		{"missing date", CreateInput{UserID: "u", EventID: "E1", Attendees: 1}, ErrDateRequired},
		{"zero attendees", CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10"}, ErrAttendees},
		{"inactive", CreateInput{UserID: "u", EventID: "E2", Date: "2025-01-10", Attendees: 1}, ErrEventInactive},
		{"out of range", CreateInput{UserID: "u", EventID: "E3", Date: "2025-02-01", Attendees: 1}, ErrDateOutOfRange},
		{"unknown resource", CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10", Attendees: 1, ResourceIDs: []string{"x"}}, ErrUnknownResource},
		{"no user", CreateInput{EventID: "E1", Date: "2025-01-10", Attendees: 1}, errMissingUser},
		{"more than capacity", CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10", Attendees: 51}, ErrNotEnoughSeats},
		{"huge attendees", CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10", Attendees: math.MaxInt}, ErrNotEnoughSeats},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHugeAttendeesDoNotWrapCapacity(t *testing.T) {
	store := newMemStore(gala(50, 10))
	seed(store, "early", 40)
	svc, rec := newTestService(store)
	ctx := context.Background()

	for _, n := range []int{math.MaxInt, math.MaxInt - 39, math.MaxInt32} {
		if _, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "E1", Date: "2025-01-10", Attendees: n}); !errors.Is(err, ErrNotEnoughSeats) {
			t.Fatalf("attendees=%d: expected not enough seats, got %v", n, err)
		}
	}
	booked, _ := store.ConfirmedAttendees(ctx, "E1", "2025-01-10")
	if booked != 40 {
		t.Fatalf("confirmed attendees changed to %d", booked)
	}
	if _, err := svc.Create(ctx, CreateInput{UserID: "u2", EventID: "E1", Date: "2025-01-10", Attendees: 11}); !errors.Is(err, ErrNotEnoughSeats) {
		t.Fatalf("capacity must still hold, got %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("no booking should have been created, got %d events", len(rec.Events()))
	}
}

func TestDuplicateBookingSameUser(t *testing.T) {
	svc, _ := newTestService(newMemStore(gala(50, 10)))
	ctx := context.Background()
	in := CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10", Attendees: 2}

	b, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrAlreadyBooked) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if err := svc.Cancel(ctx, "u", b.ID, false); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
}

func TestTotalChargeIsExact(t *testing.T) {
	prices := []float64{0.1, 0.2, 19.99, 5.05, 120, 0.01, 33.33}
	store := newMemStore(gala(1000, 12.35))
	for i, p := range prices {
		store.addResource(models.EventResource{ID: fmt.Sprint("R", i), Name: fmt.Sprint("res", i), Price: p})
	}
	svc, _ := newTestService(store)

	for n := 0; n <= len(prices); n++ {
		var ids []string
		var want int64 = models.ToCents(12.35) * 3
		for i := 0; i < n; i++ {
			ids = append(ids, fmt.Sprint("R", i))
			want += models.ToCents(prices[i])
		}
		b, err := svc.Create(context.Background(), CreateInput{
			UserID: fmt.Sprint("user", n), EventID: "E1", Date: "2025-01-10", Attendees: 3, ResourceIDs: ids,
		})
		if err != nil {
			t.Fatalf("%d resources: %v", n, err)
		}
		if models.ToCents(b.TotalCharge) != want {
			t.Fatalf("%d resources: total %v, want %d cents", n, b.TotalCharge, want)
		}
		if len(b.ResourceIDs) != n {
			t.Fatalf("%d resources: stored %v", n, b.ResourceIDs)
		}
	}
}

func TestConcurrentBookingsNeverExceedCapacity(t *testing.T) {
	store := newMemStore(gala(50, 1))
	store.delay = 2 * time.Millisecond
	svc, _ := newTestService(store)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.Create(context.Background(), CreateInput{
				UserID: fmt.Sprint("u", i), EventID: "E1", Date: "2025-01-10", Attendees: 1 + rand.Intn(5),
			})
		}(i)
	}
	wg.Wait()

	total, _ := store.ConfirmedAttendees(context.Background(), "E1", "2025-01-10")
	if total > 50 {
		t.Fatalf("capacity exceeded: %d confirmed attendees", total)
	}
}

func TestAvailableResources(t *testing.T) {
	store := newMemStore(gala(50, 1))
	store.addResource(models.EventResource{ID: "R1", Name: "Projector", Price: 20, Bookings: []string{"E1"}})
	store.addResource(models.EventResource{ID: "R2", Name: "DJ", Price: 150})
	svc, _ := newTestService(store)

	list, err := svc.AvailableResources(context.Background(), "E1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "R2" {
		t.Fatalf("expected only R2, got %+v", list)
	}
}

func TestMinePopulatesEventAndResources(t *testing.T) {
	store := newMemStore(gala(50, 5))
	store.addResource(models.EventResource{ID: "R1", Name: "Projector", Price: 20})
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{UserID: "u", EventID: "E1", Date: "2025-01-10", Attendees: 2, ResourceIDs: []string{"R1"}}); err != nil {
		t.Fatal(err)
	}
	list, err := svc.Mine(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Event == nil || list[0].Event.Title != "Gala" {
		t.Fatalf("event not populated: %+v", list)
	}
	if len(list[0].Resources) != 1 || list[0].Resources[0].Name != "Projector" {
		t.Fatalf("resources not populated: %+v", list[0].Resources)
	}
}

func TestCancelRules(t *testing.T) {
	svc, _ := newTestService(newMemStore(gala(50, 5)))
	ctx := context.Background()
	b, err := svc.Create(ctx, CreateInput{UserID: "owner", EventID: "E1", Date: "2025-01-10", Attendees: 2})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Cancel(ctx, "other", b.ID, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, "other", "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Cancel(ctx, "admin", b.ID, true); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if err := svc.Cancel(ctx, "owner", b.ID, false); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
}
