package tables

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

// prepare validates t and fills defaults. Price is never taken from input.
func prepare(t *models.Table) error {
	if t.Status == "" {
		t.Status = models.TableActive
	}
	t.Price = 0
	return utils.Validate(t)
}

func withPrices(list []models.Table) []models.Table {
	for i := range list {
		list[i] = list[i].WithPrice()
	}
	return list
}

// GET /api/tables (admin) ?status=
func GetTables(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if s := r.URL.Query().Get("status"); s != "" {
		filter["status"] = s
	}
	cur, err := db.TableCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		log.Error().Err(err).Msg("tables: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch tables")
		return
	}
	list := []models.Table{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Msg("tables: decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch tables")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, withPrices(list))
}

// POST /api/tables (admin)
func CreateTable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var t models.Table
	if err := utils.DecodeJSON(r, &t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := prepare(&t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = utils.GetUUID()
	if _, err := db.TableCollection.InsertOne(ctx, t); err != nil {
		if db.IsDuplicateKey(err) {
			utils.RespondWithError(w, http.StatusConflict, "Table number already exists")
			return
		}
		log.Error().Err(err).Msg("tables: insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create table")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, t.WithPrice())
}

// PUT /api/tables/:id (admin)
func UpdateTable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var t models.Table
	if err := utils.DecodeJSON(r, &t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := prepare(&t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = ps.ByName("id")

	res, err := db.TableCollection.ReplaceOne(ctx, bson.M{"id": t.ID}, t)
	switch {
	case db.IsDuplicateKey(err):
		utils.RespondWithError(w, http.StatusConflict, "Table number already exists")
		return
	case err != nil:
		log.Error().Err(err).Msg("tables: replace failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update table")
		return
	case res.MatchedCount == 0:
		utils.RespondWithError(w, http.StatusNotFound, "Table not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, t.WithPrice())
}

// DELETE /api/tables/:id (admin). Tables with upcoming confirmed
// reservations must be deactivated instead.
func DeleteTable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := ps.ByName("id")
	n, err := db.ReservationCollection.CountDocuments(ctx, bson.M{
		"table_ids": id,
		"status":    bson.M{"$in": []string{models.ReservationConfirmed, models.ReservationPending}},
		"end":       bson.M{"$gt": time.Now().UTC()},
	})
	if err != nil {
		log.Error().Err(err).Msg("tables: reservation count failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete table")
		return
	}
	if n > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Table has upcoming reservations; set it inactive instead")
		return
	}

	var t models.Table
	err = db.TableCollection.FindOneAndDelete(ctx, bson.M{"id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Table not found")
		return
	} else if err != nil {
		log.Error().Err(err).Msg("tables: delete failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete table")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
