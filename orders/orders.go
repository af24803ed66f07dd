package orders

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trattoria/cart"
	"trattoria/db"
	"trattoria/metrics"
	"trattoria/models"
	"trattoria/mq"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrEmptyCart         = errors.New("Cart is empty")
	ErrNotFound          = errors.New("Order not found")
	ErrInvalidTransition = errors.New("Order status change not allowed")
)

// transitions lists the statuses an order may move to from each status.
var transitions = map[string][]string{
	models.OrderPending:   {models.OrderPaid, models.OrderCancelled},
	models.OrderPaid:      {models.OrderPreparing, models.OrderCancelled},
	models.OrderPreparing: {models.OrderCompleted},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BuildOrder snapshots cart lines into a pending order.
func BuildOrder(userID, addressID string, items []models.CartItem, now time.Time) (*models.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	lines := make([]models.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.OrderLine{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return &models.Order{
		ID:        utils.GetUUID(),
		UserID:    userID,
		Items:     lines,
		AddressID: addressID,
		Total:     cart.Subtotal(items),
		Status:    models.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type Handler struct {
	events mq.Publisher
}

func NewHandler(events mq.Publisher) *Handler {
	return &Handler{events: events}
}

// POST /api/orders/checkout turns the caller's cart into a pending order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		AddressID string `json:"addressId"`
	}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
	}
	userID := utils.GetUserIDFromRequest(r)

	if body.AddressID != "" {
		n, err := db.AddressCollection.CountDocuments(ctx, bson.M{"id": body.AddressID, "user_id": userID})
		if err != nil || n == 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Unknown address")
			return
		}
	}

	items, err := cart.Items(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("checkout: load cart failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to place order")
		return
	}
	order, err := BuildOrder(userID, body.AddressID, items, time.Now().UTC())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := db.OrderCollection.InsertOne(ctx, order); err != nil {
		log.Error().Err(err).Msg("checkout: insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Order creation failed")
		return
	}
	if err := cart.Clear(ctx, userID); err != nil {
		log.Error().Err(err).Str("order", order.ID).Msg("checkout: cart cleanup failed")
	}

	metrics.Orders.WithLabelValues("placed").Inc()
	h.events.Emit(ctx, mq.Event{Type: mq.OrderPlaced, EntityID: order.ID, UserID: userID, Data: order})
	utils.RespondWithJSON(w, http.StatusCreated, order)
}

// GET /api/orders?status= lists the caller's orders; admins see everyone's.
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if !utils.IsAdminRequest(r) {
		filter["user_id"] = utils.GetUserIDFromRequest(r)
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter["status"] = s
	}
	opts := utils.ParseQueryOptions(r)
	cur, err := db.OrderCollection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		log.Error().Err(err).Msg("orders: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	list := []models.Order{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Msg("orders: decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// Get loads an order visible to userID (any order when admin).
func Get(ctx context.Context, id, userID string, admin bool) (*models.Order, error) {
	filter := bson.M{"id": id}
	if !admin {
		filter["user_id"] = userID
	}
	var o models.Order
	err := db.OrderCollection.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ByPayPalID loads the order userID paid for with PayPal order paypalID.
func ByPayPalID(ctx context.Context, paypalID, userID string) (*models.Order, error) {
	var o models.Order
	err := db.OrderCollection.FindOne(ctx, bson.M{"paypal_order_id": paypalID, "user_id": userID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// AttachPayment records the PayPal order opened for a pending order.
func AttachPayment(ctx context.Context, id, paypalID string) error {
	res, err := db.OrderCollection.UpdateOne(ctx,
		bson.M{"id": id, "status": models.OrderPending},
		bson.M{"$set": bson.M{"paypal_order_id": paypalID, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetStatus moves an order to status if the transition is allowed. extra
// fields are set in the same update.
func SetStatus(ctx context.Context, id, status string, extra bson.M) (*models.Order, error) {
	var from []string
	for f := range transitions {
		if canTransition(f, status) {
			from = append(from, f)
		}
	}
	if len(from) == 0 {
		return nil, ErrInvalidTransition
	}
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		set[k] = v
	}
	var o models.Order
	err := db.OrderCollection.FindOneAndUpdate(ctx,
		bson.M{"id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if n, _ := db.OrderCollection.CountDocuments(ctx, bson.M{"id": id}); n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// PATCH /api/orders/:id/status (admin)
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body struct {
		Status string `json:"status" validate:"required,oneof=pending paid preparing completed cancelled"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := SetStatus(ctx, ps.ByName("id"), body.Status, nil)
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrInvalidTransition):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("orders: status update failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update order")
		return
	}
	metrics.Orders.WithLabelValues(body.Status).Inc()
	h.events.Emit(ctx, mq.Event{Type: mq.OrderStatus, EntityID: o.ID, UserID: o.UserID, Data: map[string]string{"status": o.Status}})
	utils.RespondWithJSON(w, http.StatusOK, o)
}
