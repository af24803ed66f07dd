package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trattoria/db"
	"trattoria/models"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateActive marks lines that have not been checked out.
const StateActive = "active"

type addRequest struct {
	MenuItemID string `json:"menuItemId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=1,lte=99"`
	Location   string `json:"location"`
}

// linePrice resolves the unit price charged for item at location.
func linePrice(item *models.MenuItem, location string) (float64, error) {
	if !item.IsActive {
		return 0, utils.Invalid("Item is not available")
	}
	price, ok := item.EffectivePrice(location)
	if !ok {
		return 0, utils.Invalid("Item is not available at this location")
	}
	return price, nil
}

// Subtotal sums price*quantity over lines in cents.
func Subtotal(items []models.CartItem) float64 {
	var cents int64
	for _, it := range items {
		cents += models.ToCents(it.Price) * int64(it.Quantity)
	}
	return models.FromCents(cents)
}

// AddToCart increments quantity if the item is already in the cart, or
// inserts a new line priced from the menu.
func AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req addRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := utils.Validate(req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := utils.GetUserIDFromRequest(r)

	var item models.MenuItem
	err := db.MenuCollection.FindOne(ctx, bson.M{"id": req.MenuItemID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Menu item not found")
		return
	} else if err != nil {
		log.Error().Err(err).Msg("cart: menu lookup failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}
	price, err := linePrice(&item, req.Location)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	filter := bson.M{"user_id": userID, "menu_item_id": item.ID, "state": StateActive}
	update := bson.M{
		"$inc": bson.M{"quantity": req.Quantity},
		"$set": bson.M{"updated_at": now, "price": price},
		"$setOnInsert": bson.M{
			"id":         utils.GetUUID(),
			"name":       item.Name,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var line models.CartItem
	if err := db.CartCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&line); err != nil {
		log.Error().Err(err).Msg("cart: upsert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, line)
}

// Items returns the active cart lines for userID.
func Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	cur, err := db.CartCollection.Find(ctx, bson.M{"user_id": userID, "state": StateActive},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	items := []models.CartItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Clear removes every cart line for userID.
func Clear(ctx context.Context, userID string) error {
	_, err := db.CartCollection.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

func GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := Items(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Error().Err(err).Msg("cart: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not retrieve cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"subtotal": Subtotal(items),
	})
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func UpdateQuantity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	filter := bson.M{"id": ps.ByName("id"), "user_id": utils.GetUserIDFromRequest(r)}

	if body.Quantity <= 0 {
		removeLine(ctx, w, filter)
		return
	}
	if body.Quantity > 99 {
		utils.RespondWithError(w, http.StatusBadRequest, "quantity must be at most 99")
		return
	}

	var line models.CartItem
	err := db.CartCollection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"quantity": body.Quantity, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&line)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Cart item not found")
		return
	} else if err != nil {
		log.Error().Err(err).Msg("cart: update failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, line)
}

func RemoveItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	removeLine(ctx, w, bson.M{"id": ps.ByName("id"), "user_id": utils.GetUserIDFromRequest(r)})
}

func removeLine(ctx context.Context, w http.ResponseWriter, filter bson.M) {
	res, err := db.CartCollection.DeleteOne(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("cart: delete failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to remove item")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true})
}

func ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := Clear(ctx, utils.GetUserIDFromRequest(r)); err != nil {
		log.Error().Err(err).Msg("cart: clear failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true})
}
