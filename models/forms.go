package models

import "time"

type UserAddress struct {
	ID         string    `json:"id" bson:"id"`
	UserID     string    `json:"userId" bson:"user_id"`
	Label      string    `json:"label,omitempty" bson:"label,omitempty"`
	Line1      string    `json:"line1" bson:"line1" validate:"required"`
	Line2      string    `json:"line2,omitempty" bson:"line2,omitempty"`
	City       string    `json:"city" bson:"city" validate:"required"`
	PostalCode string    `json:"postalCode,omitempty" bson:"postal_code,omitempty"`
	Lat        float64   `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng        float64   `json:"lng,omitempty" bson:"lng,omitempty"`
	IsDefault  bool      `json:"isDefault" bson:"is_default"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

type ContactMessage struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Subject   string    `json:"subject,omitempty" bson:"subject,omitempty"`
	Message   string    `json:"message" bson:"message" validate:"required"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Occasion is a private-occasion enquiry (birthday, anniversary, ...).
type Occasion struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"userId,omitempty" bson:"user_id,omitempty"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Type      string    `json:"occasionType" bson:"occasion_type" validate:"required"`
	Date      string    `json:"date" bson:"date" validate:"required,date"`
	Guests    int       `json:"guests" bson:"guests" validate:"gte=1"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// TableBookingRequest is the free-form booking form, stored for staff follow-up.
type TableBookingRequest struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"userId,omitempty" bson:"user_id,omitempty"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Date      string    `json:"date" bson:"date" validate:"required,date"`
	Time      string    `json:"time" bson:"time" validate:"required,clock"`
	Guests    int       `json:"guests" bson:"guests" validate:"gte=1"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Timing holds opening hours for one weekday (0=Sun..6=Sat).
type Timing struct {
	Day    int    `json:"day" bson:"day" validate:"gte=0,lte=6"`
	Open   string `json:"open,omitempty" bson:"open,omitempty" validate:"omitempty,clock"`
	Close  string `json:"close,omitempty" bson:"close,omitempty" validate:"omitempty,clock"`
	Closed bool   `json:"closed" bson:"closed"`
}

// IdempotencyRecord holds the first response produced for an
// Idempotency-Key so retries can be answered without re-running the handler.
type IdempotencyRecord struct {
	Key         string    `bson:"key" json:"key"`
	Method      string    `bson:"method" json:"method"`
	Path        string    `bson:"path" json:"path"`
	UserID      string    `bson:"userid" json:"userid"`
	RequestHash string    `bson:"request_hash" json:"request_hash"`
	Done        bool      `bson:"done" json:"done"`
	Status      int       `bson:"status,omitempty" json:"status,omitempty"`
	Body        []byte    `bson:"body,omitempty" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
}
