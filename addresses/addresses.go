package addresses

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

// clearDefault unsets the default flag on every other address of userID so
// at most one stays default.
func clearDefault(ctx context.Context, userID, keepID string) error {
	_, err := db.AddressCollection.UpdateMany(ctx,
		bson.M{"user_id": userID, "id": bson.M{"$ne": keepID}, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false}})
	return err
}

// GET /api/addresses
func GetAddresses(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cur, err := db.AddressCollection.Find(ctx, bson.M{"user_id": utils.GetUserIDFromRequest(r)},
		options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		log.Error().Err(err).Msg("addresses: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch addresses")
		return
	}
	list := []models.UserAddress{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Msg("addresses: decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch addresses")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// POST /api/addresses
func CreateAddress(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var a models.UserAddress
	if err := utils.DecodeJSON(r, &a); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(a); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.ID = utils.GetUUID()
	a.UserID = utils.GetUserIDFromRequest(r)
	a.CreatedAt = time.Now().UTC()

	if _, err := db.AddressCollection.InsertOne(ctx, a); err != nil {
		log.Error().Err(err).Msg("addresses: insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save address")
		return
	}
	if a.IsDefault {
		if err := clearDefault(ctx, a.UserID, a.ID); err != nil {
			log.Warn().Err(err).Msg("addresses: clear default failed")
		}
	}
	utils.RespondWithJSON(w, http.StatusCreated, a)
}

// PUT /api/addresses/:id
func UpdateAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var a models.UserAddress
	if err := utils.DecodeJSON(r, &a); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(a); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := utils.GetUserIDFromRequest(r)

	var updated models.UserAddress
	err := db.AddressCollection.FindOneAndUpdate(ctx,
		bson.M{"id": ps.ByName("id"), "user_id": userID},
		bson.M{"$set": bson.M{
			"label":       a.Label,
			"line1":       a.Line1,
			"line2":       a.Line2,
			"city":        a.City,
			"postal_code": a.PostalCode,
			"lat":         a.Lat,
			"lng":         a.Lng,
			"is_default":  a.IsDefault,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Address not found")
		return
	} else if err != nil {
		log.Error().Err(err).Msg("addresses: update failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update address")
		return
	}
	if updated.IsDefault {
		if err := clearDefault(ctx, userID, updated.ID); err != nil {
			log.Warn().Err(err).Msg("addresses: clear default failed")
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/addresses/:id
func DeleteAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := db.AddressCollection.DeleteOne(ctx, bson.M{"id": ps.ByName("id"), "user_id": utils.GetUserIDFromRequest(r)})
	if err != nil {
		log.Error().Err(err).Msg("addresses: delete failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete address")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Address not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
