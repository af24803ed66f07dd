package models

import "time"

type EventVenue struct {
	ID       string `json:"id" bson:"id"`
	Name     string `json:"name" bson:"name" validate:"required"`
	Address  string `json:"address,omitempty" bson:"address,omitempty"`
	Capacity int    `json:"capacity" bson:"capacity" validate:"gte=0"`
}

type Event struct {
	ID               string      `json:"id" bson:"id"`
	Title            string      `json:"title" bson:"title" validate:"required"`
	Description      string      `json:"description,omitempty" bson:"description,omitempty"`
	VenueID          string      `json:"venueId,omitempty" bson:"venue_id,omitempty"`
	MaxAttendees     int         `json:"maxAttendees" bson:"max_attendees" validate:"gte=1"`
	PricePerAttendee float64     `json:"pricePerAttendee" bson:"price_per_attendee" validate:"gte=0"`
	StartDate        string      `json:"startDate,omitempty" bson:"start_date,omitempty" validate:"omitempty,date"`
	EndDate          string      `json:"endDate,omitempty" bson:"end_date,omitempty" validate:"omitempty,date"`
	IsActive         bool        `json:"isActive" bson:"is_active"`
	CreatedAt        time.Time   `json:"createdAt" bson:"created_at"`
	Venue            *EventVenue `json:"venue,omitempty" bson:"-"`
}

// EventResource is a paid add-on such as a projector or a DJ.
type EventResource struct {
	ID       string   `json:"id" bson:"id"`
	Name     string   `json:"name" bson:"name" validate:"required"`
	Price    float64  `json:"price" bson:"price" validate:"gte=0"`
	Bookings []string `json:"bookings,omitempty" bson:"bookings,omitempty"`
}

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

type EventBooking struct {
	ID          string    `json:"id" bson:"id"`
	UserID      string    `json:"userId" bson:"user_id"`
	EventID     string    `json:"eventId" bson:"event_id"`
	Date        string    `json:"date" bson:"date"`
	Attendees   int       `json:"attendees" bson:"attendees"`
	ResourceIDs []string  `json:"resourceIds" bson:"resource_ids"`
	TotalCharge float64   `json:"totalCharge" bson:"total_charge"`
	Status      string    `json:"status" bson:"status"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`

	Event     *Event          `json:"event,omitempty" bson:"-"`
	Resources []EventResource `json:"resources,omitempty" bson:"-"`
}
