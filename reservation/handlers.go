package reservation

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
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrBusy):
		utils.RespondWithError(w, http.StatusServiceUnavailable, ErrBusy.Error())
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrNoTables),
		errors.Is(err, ErrTableUnavailable), errors.Is(err, ErrTimeConflict),
		errors.Is(err, ErrInPast), errors.Is(err, ErrTooLateToCancel),
		errors.Is(err, ErrNotCancellable), errors.Is(err, ErrInvalidTransition):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("op", op).Msg("reservation store timeout")
		utils.RespondWithError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		if utils.IsValidation(err) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("op", op).Msg("reservation request failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GET /api/v1/reservations/available?date&startTime&endTime
func (h *Handler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	tables, err := h.svc.Available(ctx, Window{
		Date:      q.Get("date"),
		StartTime: q.Get("startTime"),
		EndTime:   q.Get("endTime"),
	})
	if err != nil {
		h.fail(w, "available", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"availableTables": tables})
}

// POST /api/v1/reservations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	// a signed-in caller always books for themselves
	if uid := utils.GetUserIDFromRequest(r); uid != "" {
		in.UserID = uid
	}

	res, err := h.svc.Create(ctx, in)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{"success": true, "reservation": res})
}

// GET /api/v1/reservations/my-reservations
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.svc.Mine(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, "mine", err)
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// PATCH /api/v1/reservations/cancel/:id
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Cancel(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id")); err != nil {
		h.fail(w, "cancel", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Reservation cancelled successfully",
	})
}

// GET /api/v1/reservations (admin)
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := utils.ParseQueryOptions(r)
	list, err := h.svc.List(ctx, ListFilter{
		Date:   r.URL.Query().Get("date"),
		Status: r.URL.Query().Get("status"),
		Skip:   opts.Skip(),
		Limit:  int64(opts.Limit),
	})
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"reservations": list, "page": opts.Page})
}

// PATCH /api/v1/reservations/status/:id (admin)
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body struct {
		Status string `json:"status" validate:"required,oneof=pending confirmed seated cancelled no-show"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.SetStatus(ctx, ps.ByName("id"), body.Status)
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "reservation": res})
}

// GET /api/v1/reservations/confirmation/:id returns a PDF with a signed QR
// code for check-in.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.svc.Get(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"), utils.IsAdminRequest(r))
	if err != nil {
		h.fail(w, "confirmation", err)
		return
	}
	if res.Status == models.ReservationCancelled {
		utils.RespondWithError(w, http.StatusBadRequest, ErrNotCancellable.Error())
		return
	}
	pdf, err := tickets.ReservationPDF(res, utils.GetUsernameFromRequest(r), h.ticketSecret)
	if err != nil {
		log.Error().Err(err).Str("reservation", res.ID).Msg("failed to render confirmation")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=reservation-"+res.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
