package tickets

import (
	"bytes"
	"testing"

	"trattoria/models"
)

func TestSignVerify(t *testing.T) {
	secret := []byte("s3cret")
	payload := Sign("reservation", "r-1", secret)

	kind, id, err := Verify(payload, secret)
	if err != nil || kind != "reservation" || id != "r-1" {
		t.Fatalf("verify failed: %q %q %v", kind, id, err)
	}
	if _, _, err := Verify(payload, []byte("other")); err != ErrBadSignature {
		t.Fatalf("expected signature error with wrong secret, got %v", err)
	}
	if _, _, err := Verify("reservation|r-2|"+payload[len("reservation|r-1|"):], secret); err != ErrBadSignature {
		t.Fatal("tampered id must not verify")
	}
}

func TestReservationPDF(t *testing.T) {
	pdf, err := ReservationPDF(&models.Reservation{
		ID: "r-1", Date: "2024-12-25", StartTime: "10:00", EndTime: "11:00",
		Status: models.ReservationConfirmed, TableIDs: []string{"t1"},
	}, "ada", []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a pdf: %q", pdf[:8])
	}
}
