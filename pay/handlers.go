package pay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trattoria/metrics"
	"trattoria/models"
	"trattoria/mq"
	"trattoria/orders"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

// OrderBook is the slice of order storage the payment flow touches.
type OrderBook interface {
	Get(ctx context.Context, id, userID string) (*models.Order, error)
	ByPayPalID(ctx context.Context, paypalID, userID string) (*models.Order, error)
	AttachPayment(ctx context.Context, id, paypalID string) error
	MarkPaid(ctx context.Context, id, paypalID string) (*models.Order, error)
}

type mongoOrders struct{}

func (mongoOrders) Get(ctx context.Context, id, userID string) (*models.Order, error) {
	return orders.Get(ctx, id, userID, false)
}

func (mongoOrders) ByPayPalID(ctx context.Context, paypalID, userID string) (*models.Order, error) {
	return orders.ByPayPalID(ctx, paypalID, userID)
}

func (mongoOrders) AttachPayment(ctx context.Context, id, paypalID string) error {
	return orders.AttachPayment(ctx, id, paypalID)
}

func (mongoOrders) MarkPaid(ctx context.Context, id, paypalID string) (*models.Order, error) {
	return orders.SetStatus(ctx, id, models.OrderPaid, bson.M{"paypal_order_id": paypalID})
}

type Handler struct {
	gw       Gateway
	orders   OrderBook
	currency string
	events   mq.Publisher
}

func NewHandler(gw Gateway, currency string, events mq.Publisher) *Handler {
	return &Handler{gw: gw, orders: mongoOrders{}, currency: currency, events: events}
}

func (h *Handler) gatewayError(w http.ResponseWriter, err error, what string) {
	var pe *ProviderError
	switch {
	case errors.Is(err, ErrNotConfigured):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Payments are not configured")
	case errors.Is(err, ErrUnavailable):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Payment provider unavailable, try again later")
	case errors.As(err, &pe) && pe.Status == http.StatusUnprocessableEntity:
		utils.RespondWithError(w, http.StatusBadRequest, "Payment was not approved")
	default:
		log.Error().Err(err).Msg("paypal: " + what + " failed")
		utils.RespondWithError(w, http.StatusBadGateway, "Payment provider error")
	}
}

// POST /api/paypal/create-order
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var body struct {
		OrderID string `json:"orderId" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := utils.GetUserIDFromRequest(r)

	o, err := h.orders.Get(ctx, body.OrderID, userID)
	if errors.Is(err, orders.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		log.Error().Err(err).Msg("paypal: load order failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	if o.Status != models.OrderPending {
		utils.RespondWithError(w, http.StatusBadRequest, "Order is not awaiting payment")
		return
	}

	id, approve, err := h.gw.CreateOrder(ctx, models.ToCents(o.Total), h.currency, o.ID)
	if err != nil {
		h.gatewayError(w, err, "create order")
		return
	}
	if err := h.orders.AttachPayment(ctx, o.ID, id); err != nil {
		log.Error().Err(err).Str("order", o.ID).Msg("paypal: attach payment failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id, "approveUrl": approve})
}

// POST /api/paypal/capture/:paypalOrderId
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	paypalID := ps.ByName("paypalOrderId")
	userID := utils.GetUserIDFromRequest(r)

	o, err := h.orders.ByPayPalID(ctx, paypalID, userID)
	if errors.Is(err, orders.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		log.Error().Err(err).Msg("paypal: load order failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	if o.Status == models.OrderPaid {
		utils.RespondWithJSON(w, http.StatusOK, o)
		return
	}

	status, err := h.gw.CaptureOrder(ctx, paypalID)
	if err != nil {
		h.gatewayError(w, err, "capture")
		return
	}
	if status != "COMPLETED" {
		utils.RespondWithError(w, http.StatusPaymentRequired, "Payment not completed: "+status)
		return
	}

	paid, err := h.orders.MarkPaid(ctx, o.ID, paypalID)
	if err != nil {
		log.Error().Err(err).Str("order", o.ID).Str("paypal", paypalID).Msg("paypal: captured but order update failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Payment captured but order update failed")
		return
	}
	metrics.Orders.WithLabelValues(models.OrderPaid).Inc()
	h.events.Emit(ctx, mq.Event{Type: mq.OrderStatus, EntityID: paid.ID, UserID: paid.UserID, Data: map[string]string{"status": paid.Status}})
	utils.RespondWithJSON(w, http.StatusOK, paid)
}
