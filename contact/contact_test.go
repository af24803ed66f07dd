package contact

import (
	"testing"
	"time"

	"trattoria/models"
	"trattoria/utils"
)

func TestStampFillsServerFields(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	var o models.Occasion
	occasionForm{&o}.stamp("id1", "u1", at)
	if o.ID != "id1" || o.UserID != "u1" || !o.CreatedAt.Equal(at) {
		t.Fatalf("occasion not stamped: %+v", o)
	}

	var m models.ContactMessage
	contactForm{&m}.stamp("id2", "u2", at)
	if m.ID != "id2" || !m.CreatedAt.Equal(at) {
		t.Fatalf("message not stamped: %+v", m)
	}

	var b models.TableBookingRequest
	tableBookingForm{&b}.stamp("id3", "", at)
	if b.ID != "id3" || b.UserID != "" {
		t.Fatalf("table booking not stamped: %+v", b)
	}
}

func TestFormValidation(t *testing.T) {
	ok := models.TableBookingRequest{Name: "Ann", Email: "ann@example.com", Date: "2025-03-02", Time: "19:30", Guests: 2}
	if err := utils.Validate(&ok); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
	bad := ok
	bad.Time = "7pm"
	if err := utils.Validate(&bad); err == nil || err.Error() != "time must be a time in HH:MM format" {
		t.Fatalf("expected time error, got %v", err)
	}
	msg := models.ContactMessage{Name: "Ann", Email: "not-an-email", Message: "hi"}
	if err := utils.Validate(&msg); err == nil {
		t.Fatal("bad email accepted")
	}
}
