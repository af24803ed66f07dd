package tickets

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"trattoria/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrBadSignature = errors.New("invalid check-in code")

// Sign builds the "<kind>|<id>|<sig>" payload embedded in QR codes.
func Sign(kind, id string, secret []byte) string {
	data := kind + "|" + id
	return data + "|" + signature(data, secret)
}

func signature(data string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Verify checks a payload produced by Sign and returns its kind and id.
func Verify(payload string, secret []byte) (kind, id string, err error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return "", "", ErrBadSignature
	}
	want := signature(parts[0]+"|"+parts[1], secret)
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return "", "", ErrBadSignature
	}
	return parts[0], parts[1], nil
}

type line struct {
	label, value string
}

func render(title string, lines []line, qrPayload string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(qrPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	for _, l := range lines {
		pdf.Cell(0, 10, fmt.Sprintf("%s: %s", l.label, l.value))
		pdf.Ln(8)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func ReservationPDF(r *models.Reservation, holder string, secret []byte) ([]byte, error) {
	tables := make([]string, 0, len(r.Tables))
	for _, t := range r.Tables {
		tables = append(tables, fmt.Sprintf("#%d (%d seats)", t.Number, t.Capacity))
	}
	if len(tables) == 0 {
		tables = r.TableIDs
	}
	lines := []line{
		{"Reservation", r.ID},
		{"Name", holder},
		{"Date", r.Date},
		{"Time", r.StartTime + " - " + r.EndTime},
		{"Tables", strings.Join(tables, ", ")},
		{"Status", r.Status},
	}
	if r.Guests > 0 {
		lines = append(lines, line{"Guests", fmt.Sprint(r.Guests)})
	}
	return render("Table Reservation", lines, Sign("reservation", r.ID, secret))
}

func EventBookingPDF(b *models.EventBooking, holder string, secret []byte) ([]byte, error) {
	title := b.EventID
	if b.Event != nil {
		title = b.Event.Title
	}
	lines := []line{
		{"Booking", b.ID},
		{"Event", title},
		{"Name", holder},
		{"Date", b.Date},
		{"Attendees", fmt.Sprint(b.Attendees)},
		{"Total", fmt.Sprintf("%.2f", b.TotalCharge)},
		{"Status", b.Status},
	}
	return render("Event Booking", lines, Sign("event_booking", b.ID, secret))
}
