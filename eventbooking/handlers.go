package eventbooking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trattoria/models"
	"trattoria/tickets"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	svc          *Service
	ticketSecret []byte
}

func NewHandler(svc *Service, ticketSecret []byte) *Handler {
	return &Handler{svc: svc, ticketSecret: ticketSecret}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrBusy):
		utils.RespondWithError(w, http.StatusServiceUnavailable, ErrBusy.Error())
	case errors.Is(err, ErrEventInactive), errors.Is(err, ErrDateRequired),
		errors.Is(err, ErrDateOutOfRange), errors.Is(err, ErrAttendees),
		errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrNotEnoughSeats),
		errors.Is(err, ErrUnknownResource), errors.Is(err, ErrNotCancellable),
		errors.Is(err, errMissingUser):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("op", op).Msg("event booking store timeout")
		utils.RespondWithError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		if utils.IsValidation(err) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("op", op).Msg("event booking request failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// POST /api/event-booking
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if uid := utils.GetUserIDFromRequest(r); uid != "" {
		in.UserID = uid
	}

	b, err := h.svc.Create(ctx, in)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, b)
}

// GET /api/event-booking/resources/:eventId
func (h *Handler) Resources(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.svc.AvailableResources(ctx, ps.ByName("eventId"))
	if err != nil {
		h.fail(w, "resources", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/event-booking/my-bookings
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.svc.Mine(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, "mine", err)
		return
	}
	if list == nil {
		list = []models.EventBooking{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// PATCH /api/event-booking/cancel/:id
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.svc.Cancel(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"), utils.IsAdminRequest(r))
	if err != nil {
		h.fail(w, "cancel", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Booking cancelled successfully",
	})
}

// GET /api/event-booking (admin) ?eventId&date&status
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	list, err := h.svc.List(ctx, q.Get("eventId"), q.Get("date"), q.Get("status"))
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/event-booking/confirmation/:id
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.svc.Get(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"), utils.IsAdminRequest(r))
	if err != nil {
		h.fail(w, "confirmation", err)
		return
	}
	if b.Status == models.BookingCancelled {
		utils.RespondWithError(w, http.StatusBadRequest, ErrNotCancellable.Error())
		return
	}
	pdf, err := tickets.EventBookingPDF(b, utils.GetUsernameFromRequest(r), h.ticketSecret)
	if err != nil {
		log.Error().Err(err).Str("booking", b.ID).Msg("failed to render confirmation")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=event-booking-"+b.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
