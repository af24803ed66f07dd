package events

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

// GET /api/events?active=true
func GetEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if r.URL.Query().Get("active") == "true" {
		filter["is_active"] = true
	}
	opts := utils.ParseQueryOptions(r)
	cur, err := db.EventCollection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}}).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		log.Error().Err(err).Msg("list events")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}
	list := []models.Event{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Msg("decode events")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/events/:id, with the venue populated.
func GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var ev models.Event
	err := db.EventCollection.FindOne(ctx, bson.M{"id": ps.ByName("id")}).Decode(&ev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get event")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch event")
		return
	}
	if ev.VenueID != "" {
		var v models.EventVenue
		if err := db.VenueCollection.FindOne(ctx, bson.M{"id": ev.VenueID}).Decode(&v); err == nil {
			ev.Venue = &v
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, ev)
}

// checkEvent validates an event payload, including venue capacity.
func checkEvent(ctx context.Context, ev *models.Event) error {
	if err := utils.Validate(ev); err != nil {
		return err
	}
	if ev.StartDate != "" && ev.EndDate != "" && ev.EndDate < ev.StartDate {
		return &utils.ValidationError{Msg: "endDate must not be before startDate"}
	}
	if ev.VenueID == "" {
		return nil
	}
	var v models.EventVenue
	err := db.VenueCollection.FindOne(ctx, bson.M{"id": ev.VenueID}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &utils.ValidationError{Msg: "venue not found"}
	}
	if err != nil {
		return err
	}
	return venueFits(ev, &v)
}

func venueFits(ev *models.Event, v *models.EventVenue) error {
	if v.Capacity > 0 && ev.MaxAttendees > v.Capacity {
		return &utils.ValidationError{Msg: "maxAttendees exceeds venue capacity"}
	}
	return nil
}

func respondCheckErr(w http.ResponseWriter, err error) {
	if utils.IsValidation(err) {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Msg("event validation lookup")
	utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
}

// POST /api/events (admin)
func CreateEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var ev models.Event
	if err := utils.DecodeJSON(r, &ev); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := checkEvent(ctx, &ev); err != nil {
		respondCheckErr(w, err)
		return
	}
	ev.ID = utils.GetUUID()
	ev.CreatedAt = time.Now().UTC()
	if _, err := db.EventCollection.InsertOne(ctx, ev); err != nil {
		log.Error().Err(err).Msg("insert event")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, ev)
}

// PUT /api/events/:id (admin)
func EditEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var ev models.Event
	if err := utils.DecodeJSON(r, &ev); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := checkEvent(ctx, &ev); err != nil {
		respondCheckErr(w, err)
		return
	}
	id := ps.ByName("id")
	var updated models.Event
	err := db.EventCollection.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"title":              ev.Title,
		"description":        ev.Description,
		"venue_id":           ev.VenueID,
		"max_attendees":      ev.MaxAttendees,
		"price_per_attendee": ev.PricePerAttendee,
		"start_date":         ev.StartDate,
		"end_date":           ev.EndDate,
		"is_active":          ev.IsActive,
	}}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("update event")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update event")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/events/:id (admin). Events with live bookings are deactivated
// instead of removed.
func DeleteEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := ps.ByName("id")
	n, err := db.EventBookingCollection.CountDocuments(ctx, bson.M{
		"event_id": id,
		"status":   bson.M{"$in": []string{models.BookingPending, models.BookingConfirmed}},
	})
	if err != nil {
		log.Error().Err(err).Msg("count bookings")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	if n > 0 {
		res, err := db.EventCollection.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"is_active": false}})
		if err != nil || res.MatchedCount == 0 {
			utils.RespondWithError(w, http.StatusNotFound, "Event not found")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "deactivated": true})
		return
	}
	res, err := db.EventCollection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		log.Error().Err(err).Msg("delete event")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
