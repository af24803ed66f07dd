package reservation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trattoria/models"
	"trattoria/mq"
	"trattoria/rdx"
)

var testNow = time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)

func table(id string, n int) models.Table {
	return models.Table{ID: id, Number: n, Capacity: 4, Status: models.TableActive, OnlineBookable: true, BasePrice: 10, TurnoverTime: 60}
}

func newTestService(store *memStore) (*Service, *mq.Recorder) {
	rec := mq.NewRecorder(nil)
	svc := NewService(store, rdx.NewLocalLocker(), rec, time.UTC)
	svc.now = func() time.Time { return testNow }
	return svc, rec
}

func booking(user, date, start, end string, tables ...string) CreateInput {
	return CreateInput{UserID: user, TableIDs: tables, Window: Window{Date: date, StartTime: start, EndTime: end}}
}

func TestBackToBackScenario(t *testing.T) {
	store := newMemStore(table("T", 1))
	svc, rec := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, booking("a", "2024-12-25", "10:00", "11:00", "T")); err != nil {
		t.Fatalf("booking A: %v", err)
	}
	_, err := svc.Create(ctx, booking("b", "2024-12-25", "10:30", "11:30", "T"))
	if !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("booking B: expected conflict, got %v", err)
	}
	if err.Error() != "Some tables are already reserved for this time slot" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, err := svc.Create(ctx, booking("c", "2024-12-25", "11:00", "12:00", "T")); err != nil {
		t.Fatalf("booking C (back-to-back): %v", err)
	}
	if got := len(rec.Events()); got != 2 {
		t.Fatalf("expected 2 created events, got %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	inactive := table("X", 9)
	inactive.Status = models.TableInactive
	offline := table("Y", 10)
	offline.OnlineBookable = false
	store := newMemStore(table("T", 1), inactive, offline)
	svc, _ := newTestService(store)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"no tables", booking("u", "2024-12-25", "10:00", "11:00"), ErrNoTables},
		{"end before start", booking("u", "2024-12-25", "11:00", "10:00", "T"), ErrInvalidWindow},
		{"zero length", booking("u", "2024-12-25", "10:00", "10:00", "T"), ErrInvalidWindow},
		{"unknown table", booking("u", "2024-12-25", "10:00", "11:00", "nope"), ErrTableUnavailable},
		{"inactive table", booking("u", "2024-12-25", "10:00", "11:00", "X"), ErrTableUnavailable},
		{"offline table", booking("u", "2024-12-25", "10:00", "11:00", "Y"), ErrTableUnavailable},
		{"past", booking("u", "2024-12-19", "10:00", "11:00", "T"), ErrInPast},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	_, err := svc.Create(context.Background(), booking("", "2024-12-25", "10:00", "11:00", "T"))
	if err == nil || err.Error() != "userId is required" {
		t.Fatalf("expected missing user error, got %v", err)
	}
	_, err = svc.Create(context.Background(), booking("u", "25-12-2024", "10:00", "11:00", "T"))
	if err == nil {
		t.Fatal("expected date format error")
	}
}

func TestAvailableExcludesOverlapping(t *testing.T) {
	store := newMemStore(table("T1", 1), table("T2", 2), table("T3", 3))
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, booking("a", "2024-12-25", "18:00", "20:00", "T1", "T2")); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Available(ctx, Window{Date: "2024-12-25", StartTime: "19:00", EndTime: "21:00"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "T3" {
		t.Fatalf("expected only T3, got %+v", got)
	}
	if got[0].Price != 10 {
		t.Fatalf("expected derived price on available table, got %v", got[0].Price)
	}

	got, err = svc.Available(ctx, Window{Date: "2024-12-25", StartTime: "20:00", EndTime: "21:00"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("adjacent window should free all tables, got %d", len(got))
	}
}

func TestCancelledReservationFreesTable(t *testing.T) {
	store := newMemStore(table("T", 1))
	svc, _ := newTestService(store)
	ctx := context.Background()

	r, err := svc.Create(ctx, booking("a", "2024-12-25", "10:00", "11:00", "T"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Cancel(ctx, "a", r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, booking("b", "2024-12-25", "10:00", "11:00", "T")); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	store := newMemStore(table("T", 1))
	svc, _ := newTestService(store)
	ctx := context.Background()

	// starts at 11:59 on testNow's day: less than 3h away
	soon, err := svc.Create(ctx, booking("a", "2024-12-20", "11:59", "13:00", "T"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Cancel(ctx, "a", soon.ID); !errors.Is(err, ErrTooLateToCancel) {
		t.Fatalf("expected too late, got %v", err)
	}
	got, _ := store.Get(ctx, soon.ID)
	if got.Status != models.ReservationConfirmed {
		t.Fatalf("status changed to %q on rejected cancel", got.Status)
	}

	exact, err := svc.Create(ctx, booking("a", "2024-12-20", "12:00", "12:30", "T"))
	if err == nil {
		t.Fatalf("overlapping booking accepted: %+v", exact)
	}

	later, err := svc.Create(ctx, booking("a", "2024-12-20", "13:00", "14:00", "T"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Cancel(ctx, "intruder", later.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, "a", later.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.Cancel(ctx, "a", later.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("second cancel: expected not cancellable, got %v", err)
	}
	if err := svc.Cancel(ctx, "a", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentCreateNeverDoubleBooks(t *testing.T) {
	store := newMemStore(table("T", 1))
	store.delay = 2 * time.Millisecond
	svc, _ := newTestService(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := fmt.Sprintf("10:%02d", i)
			_, err := svc.Create(context.Background(), booking(fmt.Sprint(i), "2024-12-25", start, "11:30", "T"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrTimeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || conflicts != 15 {
		t.Fatalf("expected exactly one winner, got ok=%d conflicts=%d", ok, conflicts)
	}
}

func TestRandomWindowsNeverOverlapOnSameTable(t *testing.T) {
	store := newMemStore(table("A", 1), table("B", 2), table("C", 3))
	svc, _ := newTestService(store)
	rng := rand.New(rand.NewSource(42))
	ids := []string{"A", "B", "C"}

	for i := 0; i < 300; i++ {
		s := rng.Intn(20*4) * 15
		d := (rng.Intn(8) + 1) * 15
		if s+d > 23*60 {
			continue
		}
		in := booking("u", "2024-12-25",
			fmt.Sprintf("%02d:%02d", s/60, s%60),
			fmt.Sprintf("%02d:%02d", (s+d)/60, (s+d)%60),
			ids[rng.Intn(3)])
		if rng.Intn(4) == 0 {
			in.TableIDs = append(in.TableIDs, ids[rng.Intn(3)])
		}
		_, err := svc.Create(context.Background(), in)
		if err != nil && !errors.Is(err, ErrTimeConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	res := store.reservations
	for i := range res {
		for j := i + 1; j < len(res); j++ {
			a, b := res[i], res[j]
			if !a.Overlaps(b.Start, b.End) {
				continue
			}
			for _, id := range a.TableIDs {
				for _, other := range b.TableIDs {
					if id == other {
						t.Fatalf("table %s double booked: %s-%s vs %s-%s", id, a.StartTime, a.EndTime, b.StartTime, b.EndTime)
					}
				}
			}
		}
	}
}

func TestMineSortedAndPopulated(t *testing.T) {
	store := newMemStore(table("T1", 1), table("T2", 2))
	svc, _ := newTestService(store)
	ctx := context.Background()

	svc.Create(ctx, booking("me", "2024-12-27", "10:00", "11:00", "T1"))
	svc.Create(ctx, booking("me", "2024-12-25", "10:00", "11:00", "T2", "T1"))
	svc.Create(ctx, booking("other", "2024-12-26", "10:00", "11:00", "T2"))

	list, err := svc.Mine(ctx, "me")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(list))
	}
	if list[0].Date != "2024-12-25" || len(list[0].Tables) != 2 {
		t.Fatalf("unexpected first reservation %+v", list[0])
	}
}

func TestSetStatusTransitions(t *testing.T) {
	store := newMemStore(table("T", 1))
	svc, _ := newTestService(store)
	ctx := context.Background()

	r, _ := svc.Create(ctx, booking("a", "2024-12-25", "10:00", "11:00", "T"))
	if _, err := svc.SetStatus(ctx, r.ID, models.ReservationPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirmed -> pending should be rejected, got %v", err)
	}
	got, err := svc.SetStatus(ctx, r.ID, models.ReservationSeated)
	if err != nil || got.Status != models.ReservationSeated {
		t.Fatalf("confirmed -> seated: %v %+v", err, got)
	}
	if _, err := svc.SetStatus(ctx, r.ID, models.ReservationCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("seated is terminal, got %v", err)
	}
}

func TestConfirmPendingRechecksOverlap(t *testing.T) {
	store := newMemStore(table("T", 1))
	svc, _ := newTestService(store)
	ctx := context.Background()

	store.Insert(ctx, &models.Reservation{
		ID: "p1", UserID: "a", TableIDs: []string{"T"}, Status: models.ReservationPending,
		Start: time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC), End: time.Date(2024, 12, 25, 11, 0, 0, 0, time.UTC),
	})
	if _, err := svc.Create(ctx, booking("b", "2024-12-25", "10:30", "11:30", "T")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetStatus(ctx, "p1", models.ReservationConfirmed); !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("expected conflict when confirming pending, got %v", err)
	}
}
