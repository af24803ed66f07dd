package models

import "time"

const (
	TableActive   = "active"
	TableInactive = "inactive"
)

type Table struct {
	ID             string  `json:"id" bson:"id"`
	Number         int     `json:"number" bson:"number" validate:"gte=1"`
	Capacity       int     `json:"capacity" bson:"capacity" validate:"gte=1"`
	Status         string  `json:"status" bson:"status" validate:"omitempty,oneof=active inactive"`
	OnlineBookable bool    `json:"onlineBookable" bson:"online_bookable"`
	BasePrice      float64 `json:"basePrice" bson:"base_price" validate:"gte=0"`
	TurnoverTime   int     `json:"turnoverTime" bson:"turnover_time" validate:"gte=0"`
	Location       string  `json:"location,omitempty" bson:"location,omitempty"`
	// Price is derived from BasePrice and TurnoverTime on read, never stored.
	Price float64 `json:"price" bson:"-"`
}

// TurnoverMultiplier maps the expected occupancy in minutes to a price band.
func TurnoverMultiplier(minutes int) float64 {
	switch {
	case minutes <= 60:
		return 1.0
	case minutes <= 120:
		return 1.5
	default:
		return 2.0
	}
}

// EffectivePrice is BasePrice scaled by the turnover band. It is idempotent:
// repeated calls and repeated saves never compound.
func (t *Table) EffectivePrice() float64 {
	return FromCents(ToCents(t.BasePrice * TurnoverMultiplier(t.TurnoverTime)))
}

// WithPrice returns the table with its derived Price filled in.
func (t Table) WithPrice() Table {
	t.Price = t.EffectivePrice()
	return t
}

const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationSeated    = "seated"
	ReservationCancelled = "cancelled"
	ReservationNoShow    = "no-show"
)

type Reservation struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"userId" bson:"user_id"`
	TableIDs  []string  `json:"tableIds" bson:"table_ids"`
	Date      string    `json:"date" bson:"date"`
	StartTime string    `json:"startTime" bson:"start_time"`
	EndTime   string    `json:"endTime" bson:"end_time"`
	Start     time.Time `json:"start" bson:"start"`
	End       time.Time `json:"end" bson:"end"`
	Duration  int       `json:"duration" bson:"duration"`
	Guests    int       `json:"guests,omitempty" bson:"guests,omitempty"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`

	Tables []Table `json:"tables,omitempty" bson:"-"`
}

// Overlaps reports whether [Start,End) intersects [start,end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}
