package eventbooking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"trattoria/metrics"
	"trattoria/models"
	"trattoria/mq"
	"trattoria/rdx"
	"trattoria/utils"
)

var (
	ErrEventNotFound   = errors.New("Event not found")
	ErrEventInactive   = errors.New("Event is not open for booking")
	ErrDateRequired    = errors.New("Date is required")
	ErrDateOutOfRange  = errors.New("Date is outside the event's dates")
	ErrAttendees       = errors.New("Attendees must be at least 1")
	ErrAlreadyBooked   = errors.New("You already have a booking for this event on this date")
	ErrNotEnoughSeats  = errors.New("Not enough seats available")
	ErrUnknownResource = errors.New("One or more resources were not found")
	ErrNotFound        = errors.New("Booking not found")
	ErrForbidden       = errors.New("You can only cancel your own bookings")
	ErrNotCancellable  = errors.New("Booking is already cancelled")
	ErrBusy            = errors.New("Booking system busy, try again")
	errMissingUser     = errors.New("userId is required")
)

type Store interface {
	Event(ctx context.Context, id string) (*models.Event, error)
	EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	ResourcesByIDs(ctx context.Context, ids []string) ([]models.EventResource, error)
	// ResourcesNotTiedTo returns resources whose bookings do not include eventID.
	ResourcesNotTiedTo(ctx context.Context, eventID string) ([]models.EventResource, error)
	// UserHasActiveBooking reports a pending or confirmed booking by userID
	// for event+date.
	UserHasActiveBooking(ctx context.Context, userID, eventID, date string) (bool, error)
	// ConfirmedAttendees sums attendees of confirmed bookings for event+date.
	ConfirmedAttendees(ctx context.Context, eventID, date string) (int, error)
	Insert(ctx context.Context, b *models.EventBooking) error
	Get(ctx context.Context, id string) (*models.EventBooking, error)
	ByUser(ctx context.Context, userID string) ([]models.EventBooking, error)
	// Cancel flips a non-cancelled booking to cancelled; ErrNotFound when no
	// such booking matched.
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, eventID, date, status string) ([]models.EventBooking, error)
}

type Service struct {
	store  Store
	locker rdx.Locker
	events mq.Publisher
	now    func() time.Time

	lockWait time.Duration
}

func NewService(store Store, locker rdx.Locker, events mq.Publisher) *Service {
	return &Service{store: store, locker: locker, events: events, now: time.Now, lockWait: 3 * time.Second}
}

type CreateInput struct {
	UserID      string   `json:"userId"`
	EventID     string   `json:"eventId"`
	Date        string   `json:"date"`
	Attendees   int      `json:"attendees"`
	ResourceIDs []string `json:"resourceIds"`
}

// TotalCharge is pricePerAttendee*attendees plus every resource price,
// computed in cents so the result is exact to the cent.
func TotalCharge(pricePerAttendee float64, attendees int, resources []models.EventResource) float64 {
	cents := models.ToCents(pricePerAttendee) * int64(attendees)
	for _, r := range resources {
		cents += models.ToCents(r.Price)
	}
	return models.FromCents(cents)
}

// Create books an event date. The duplicate check, capacity aggregate and
// insert run under one lock per event+date.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.EventBooking, error) {
	if in.UserID == "" {
		return nil, errMissingUser
	}
	ev, err := s.store.Event(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if in.Date == "" {
		return nil, ErrDateRequired
	}
	if _, err := utils.ParseDate(in.Date); err != nil {
		return nil, err
	}
	if !ev.IsActive {
		return nil, ErrEventInactive
	}
	if (ev.StartDate != "" && in.Date < ev.StartDate) || (ev.EndDate != "" && in.Date > ev.EndDate) {
		return nil, ErrDateOutOfRange
	}
	if in.Attendees < 1 {
		return nil, ErrAttendees
	}
	if in.Attendees > ev.MaxAttendees {
		metrics.EventBookings.WithLabelValues("full").Inc()
		return nil, ErrNotEnoughSeats
	}

	resourceIDs := slices.Clone(in.ResourceIDs)
	slices.Sort(resourceIDs)
	resourceIDs = slices.Compact(resourceIDs)
	var resources []models.EventResource
	if len(resourceIDs) > 0 {
		resources, err = s.store.ResourcesByIDs(ctx, resourceIDs)
		if err != nil {
			return nil, fmt.Errorf("load resources: %w", err)
		}
		if len(resources) != len(resourceIDs) {
			return nil, ErrUnknownResource
		}
	}

	lctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lctx, "event:"+ev.ID+":"+in.Date)
	if err != nil {
		metrics.EventBookings.WithLabelValues("busy").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer unlock()

	dup, err := s.store.UserHasActiveBooking(ctx, in.UserID, ev.ID, in.Date)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if dup {
		metrics.EventBookings.WithLabelValues("duplicate").Inc()
		return nil, ErrAlreadyBooked
	}

	booked, err := s.store.ConfirmedAttendees(ctx, ev.ID, in.Date)
	if err != nil {
		return nil, fmt.Errorf("sum attendees: %w", err)
	}
	if in.Attendees > ev.MaxAttendees-booked {
		metrics.EventBookings.WithLabelValues("full").Inc()
		return nil, ErrNotEnoughSeats
	}

	if resourceIDs == nil {
		resourceIDs = []string{}
	}
	b := &models.EventBooking{
		ID:          utils.GetUUID(),
		UserID:      in.UserID,
		EventID:     ev.ID,
		Date:        in.Date,
		Attendees:   in.Attendees,
		ResourceIDs: resourceIDs,
		TotalCharge: TotalCharge(ev.PricePerAttendee, in.Attendees, resources),
		Status:      models.BookingConfirmed,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	metrics.EventBookings.WithLabelValues("confirmed").Inc()
	s.events.Emit(ctx, mq.Event{Type: mq.EventBookingCreated, EntityID: b.ID, UserID: b.UserID, Data: b})
	return b, nil
}

// AvailableResources lists resources not already tied to eventID.
func (s *Service) AvailableResources(ctx context.Context, eventID string) ([]models.EventResource, error) {
	return s.store.ResourcesNotTiedTo(ctx, eventID)
}

// Mine returns the user's bookings with event and resources populated.
func (s *Service) Mine(ctx context.Context, userID string) ([]models.EventBooking, error) {
	list, err := s.store.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list, s.populate(ctx, list)
}

func (s *Service) populate(ctx context.Context, list []models.EventBooking) error {
	var eventIDs, resourceIDs []string
	for _, b := range list {
		eventIDs = append(eventIDs, b.EventID)
		resourceIDs = append(resourceIDs, b.ResourceIDs...)
	}
	if len(eventIDs) == 0 {
		return nil
	}
	slices.Sort(eventIDs)
	eventIDs = slices.Compact(eventIDs)
	evs, err := s.store.EventsByIDs(ctx, eventIDs)
	if err != nil {
		return fmt.Errorf("populate events: %w", err)
	}
	evByID := make(map[string]models.Event, len(evs))
	for _, e := range evs {
		evByID[e.ID] = e
	}

	resByID := map[string]models.EventResource{}
	if len(resourceIDs) > 0 {
		slices.Sort(resourceIDs)
		resourceIDs = slices.Compact(resourceIDs)
		res, err := s.store.ResourcesByIDs(ctx, resourceIDs)
		if err != nil {
			return fmt.Errorf("populate resources: %w", err)
		}
		for _, r := range res {
			resByID[r.ID] = r
		}
	}

	for i := range list {
		if e, ok := evByID[list[i].EventID]; ok {
			list[i].Event = &e
		}
		list[i].Resources = []models.EventResource{}
		for _, id := range list[i].ResourceIDs {
			if r, ok := resByID[id]; ok {
				list[i].Resources = append(list[i].Resources, r)
			}
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, userID, id string, admin bool) (*models.EventBooking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && b.UserID != userID {
		return nil, ErrNotFound
	}
	list := []models.EventBooking{*b}
	if err := s.populate(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Cancel releases the booking's seats. Only the owner or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, userID, id string, admin bool) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !admin && b.UserID != userID {
		return ErrForbidden
	}
	if b.Status == models.BookingCancelled {
		return ErrNotCancellable
	}
	if err := s.store.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotCancellable
		}
		return err
	}
	s.events.Emit(ctx, mq.Event{Type: mq.EventBookingCancel, EntityID: id, UserID: b.UserID})
	return nil
}

func (s *Service) List(ctx context.Context, eventID, date, status string) ([]models.EventBooking, error) {
	list, err := s.store.List(ctx, eventID, date, status)
	if err != nil {
		return nil, err
	}
	return list, s.populate(ctx, list)
}
