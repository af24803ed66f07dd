package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"trattoria/metrics"
	"trattoria/models"
	"trattoria/mq"
	"trattoria/rdx"
	"trattoria/utils"
)

var (
	ErrInvalidWindow     = errors.New("endTime must be after startTime")
	ErrNoTables          = errors.New("at least one table is required")
	ErrTableUnavailable  = errors.New("One or more tables are not available for online booking")
	ErrTimeConflict      = errors.New("Some tables are already reserved for this time slot")
	ErrInPast            = errors.New("Cannot reserve a time in the past")
	ErrNotFound          = errors.New("Reservation not found")
	ErrForbidden         = errors.New("You can only cancel your own reservations")
	ErrTooLateToCancel   = errors.New("Reservations can only be cancelled at least 3 hours in advance")
	ErrNotCancellable    = errors.New("Reservation is not active")
	ErrInvalidTransition = errors.New("Invalid status transition")
	ErrBusy              = errors.New("Booking system busy, try again")
)

// CancelWindow is the minimum notice required to cancel a reservation.
const CancelWindow = 3 * time.Hour

// Store is the persistence the reservation service needs.
type Store interface {
	BookableTables(ctx context.Context) ([]models.Table, error)
	TablesByIDs(ctx context.Context, ids []string) ([]models.Table, error)
	// Conflicts returns confirmed reservations overlapping [start,end). A nil
	// tableIDs means every table.
	Conflicts(ctx context.Context, tableIDs []string, start, end time.Time) ([]models.Reservation, error)
	Insert(ctx context.Context, r *models.Reservation) error
	Get(ctx context.Context, id string) (*models.Reservation, error)
	ByUser(ctx context.Context, userID string) ([]models.Reservation, error)
	// SetStatus moves id to status only if its current status is one of from.
	// It returns ErrNotFound when no document matched.
	SetStatus(ctx context.Context, id string, from []string, status string, at time.Time) error
	List(ctx context.Context, f ListFilter) ([]models.Reservation, error)
}

type ListFilter struct {
	Date   string
	Status string
	Skip   int64
	Limit  int64
}

type Service struct {
	store  Store
	locker rdx.Locker
	events mq.Publisher
	loc    *time.Location
	now    func() time.Time

	lockWait time.Duration
}

func NewService(store Store, locker rdx.Locker, events mq.Publisher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    store,
		locker:   locker,
		events:   events,
		loc:      loc,
		now:      time.Now,
		lockWait: 3 * time.Second,
	}
}

// Window is a requested [start,end) slot on one date.
type Window struct {
	Date      string `json:"date" validate:"required,date"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
}

func (s *Service) resolve(w Window) (time.Time, time.Time, error) {
	if err := utils.Validate(w); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := utils.CombineDateClock(w.Date, w.StartTime, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := utils.CombineDateClock(w.Date, w.EndTime, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	return start.UTC(), end.UTC(), nil
}

// Available lists active, online-bookable tables with no confirmed
// reservation overlapping the window.
func (s *Service) Available(ctx context.Context, w Window) ([]models.Table, error) {
	start, end, err := s.resolve(w)
	if err != nil {
		return nil, err
	}
	tables, err := s.store.BookableTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	booked, err := s.store.Conflicts(ctx, nil, start, end)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	taken := make(map[string]bool)
	for _, r := range booked {
		for _, id := range r.TableIDs {
			taken[id] = true
		}
	}
	available := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if !taken[t.ID] {
			available = append(available, t.WithPrice())
		}
	}
	return available, nil
}

type CreateInput struct {
	UserID   string   `json:"userId" validate:"required"`
	TableIDs []string `json:"tableIds" validate:"required,min=1,dive,required"`
	Guests   int      `json:"guests,omitempty" validate:"gte=0"`
	Window
}

// Create books the requested tables. The conflict check and the insert run
// while holding a lock on every requested table, so two overlapping requests
// for the same table cannot both be confirmed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	if len(in.TableIDs) == 0 {
		return nil, ErrNoTables
	}
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	start, end, err := s.resolve(in.Window)
	if err != nil {
		return nil, err
	}
	if start.Before(s.now()) {
		return nil, ErrInPast
	}

	tableIDs := slices.Clone(in.TableIDs)
	sort.Strings(tableIDs)
	tableIDs = slices.Compact(tableIDs)

	tables, err := s.store.TablesByIDs(ctx, tableIDs)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	if len(tables) != len(tableIDs) {
		metrics.Reservations.WithLabelValues("rejected").Inc()
		return nil, ErrTableUnavailable
	}
	for _, t := range tables {
		if t.Status != models.TableActive || !t.OnlineBookable {
			metrics.Reservations.WithLabelValues("rejected").Inc()
			return nil, ErrTableUnavailable
		}
	}

	keys := make([]string, len(tableIDs))
	for i, id := range tableIDs {
		keys[i] = "table:" + id
	}
	lctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lctx, keys...)
	if err != nil {
		metrics.Reservations.WithLabelValues("busy").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer unlock()

	conflicts, err := s.store.Conflicts(ctx, tableIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		metrics.Reservations.WithLabelValues("conflict").Inc()
		return nil, ErrTimeConflict
	}

	now := s.now().UTC()
	res := &models.Reservation{
		ID:        utils.GetUUID(),
		UserID:    in.UserID,
		TableIDs:  tableIDs,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Start:     start,
		End:       end,
		Duration:  int(end.Sub(start).Minutes()),
		Guests:    in.Guests,
		Status:    models.ReservationConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, res); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	metrics.Reservations.WithLabelValues("confirmed").Inc()
	s.events.Emit(ctx, mq.Event{Type: mq.ReservationCreated, EntityID: res.ID, UserID: res.UserID, Data: res})
	return res, nil
}

// Mine returns the user's reservations ordered by start time with tables
// populated.
func (s *Service) Mine(ctx context.Context, userID string) ([]models.Reservation, error) {
	list, err := s.store.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.populate(ctx, list); err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	return list, nil
}

func (s *Service) populate(ctx context.Context, list []models.Reservation) error {
	var ids []string
	for _, r := range list {
		ids = append(ids, r.TableIDs...)
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	tables, err := s.store.TablesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate tables: %w", err)
	}
	byID := make(map[string]models.Table, len(tables))
	for _, t := range tables {
		byID[t.ID] = t.WithPrice()
	}
	for i := range list {
		list[i].Tables = list[i].Tables[:0]
		for _, id := range list[i].TableIDs {
			if t, ok := byID[id]; ok {
				list[i].Tables = append(list[i].Tables, t)
			}
		}
	}
	return nil
}

// Get returns one reservation; non-admin callers only see their own.
func (s *Service) Get(ctx context.Context, userID, id string, admin bool) (*models.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && r.UserID != userID {
		return nil, ErrNotFound
	}
	list := []models.Reservation{*r}
	if err := s.populate(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Cancel lets the owner cancel an active reservation at least CancelWindow
// before it starts. On rejection the status is left untouched.
func (s *Service) Cancel(ctx context.Context, userID, id string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return ErrForbidden
	}
	if r.Status != models.ReservationConfirmed && r.Status != models.ReservationPending {
		return ErrNotCancellable
	}
	now := s.now()
	if r.Start.Sub(now) < CancelWindow {
		return ErrTooLateToCancel
	}
	if err := s.store.SetStatus(ctx, id, []string{models.ReservationConfirmed, models.ReservationPending}, models.ReservationCancelled, now.UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotCancellable
		}
		return err
	}
	s.events.Emit(ctx, mq.Event{Type: mq.ReservationCancelled, EntityID: id, UserID: userID})
	return nil
}

var transitions = map[string][]string{
	models.ReservationPending:   {models.ReservationConfirmed, models.ReservationCancelled},
	models.ReservationConfirmed: {models.ReservationSeated, models.ReservationNoShow, models.ReservationCancelled},
}

// SetStatus applies a staff status change.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(transitions[r.Status], status) {
		return nil, ErrInvalidTransition
	}
	if status == models.ReservationConfirmed {
		// pending -> confirmed must still respect the overlap rule
		return s.confirmPending(ctx, r)
	}
	if err := s.store.SetStatus(ctx, id, []string{r.Status}, status, s.now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	r.Status = status
	s.events.Emit(ctx, mq.Event{Type: mq.ReservationStatus, EntityID: id, UserID: r.UserID, Data: map[string]string{"status": status}})
	return r, nil
}

func (s *Service) confirmPending(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	keys := make([]string, len(r.TableIDs))
	for i, id := range r.TableIDs {
		keys[i] = "table:" + id
	}
	lctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer unlock()

	conflicts, err := s.store.Conflicts(ctx, r.TableIDs, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, ErrTimeConflict
	}
	if err := s.store.SetStatus(ctx, r.ID, []string{models.ReservationPending}, models.ReservationConfirmed, s.now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	r.Status = models.ReservationConfirmed
	s.events.Emit(ctx, mq.Event{Type: mq.ReservationStatus, EntityID: r.ID, UserID: r.UserID, Data: map[string]string{"status": r.Status}})
	return r, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Reservation, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.populate(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}
