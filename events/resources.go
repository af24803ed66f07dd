package events

import (
	"context"
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

func listAll[T any](w http.ResponseWriter, r *http.Request, coll *mongo.Collection, what string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		log.Error().Err(err).Str("what", what).Msg("list")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch "+what)
		return
	}
	list := []T{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Str("what", what).Msg("decode")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch "+what)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func deleteByID(w http.ResponseWriter, r *http.Request, coll *mongo.Collection, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		log.Error().Err(err).Msg("delete")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func GetVenues(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	listAll[models.EventVenue](w, r, db.VenueCollection, "venues")
}

func CreateVenue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var v models.EventVenue
	if err := utils.DecodeJSON(r, &v); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(v); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	v.ID = utils.GetUUID()
	if _, err := db.VenueCollection.InsertOne(r.Context(), v); err != nil {
		log.Error().Err(err).Msg("insert venue")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create venue")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, v)
}

func DeleteVenue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	deleteByID(w, r, db.VenueCollection, ps.ByName("id"))
}

func GetResources(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	listAll[models.EventResource](w, r, db.ResourceCollection, "resources")
}

func CreateResource(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var res models.EventResource
	if err := utils.DecodeJSON(r, &res); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(res); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	res.ID = utils.GetUUID()
	res.Bookings = nil
	if _, err := db.ResourceCollection.InsertOne(r.Context(), res); err != nil {
		log.Error().Err(err).Msg("insert resource")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create resource")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

func DeleteResource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	deleteByID(w, r, db.ResourceCollection, ps.ByName("id"))
}
