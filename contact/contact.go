package contact

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

// submission is a form record that gets an id, an optional owner and a
// creation time before it is stored.
type submission interface {
	stamp(id, userID string, at time.Time)
}

type contactForm struct{ *models.ContactMessage }

func (f contactForm) stamp(id, _ string, at time.Time) {
	f.ID, f.CreatedAt = id, at
}

type occasionForm struct{ *models.Occasion }

func (f occasionForm) stamp(id, userID string, at time.Time) {
	f.ID, f.UserID, f.CreatedAt = id, userID, at
}

type tableBookingForm struct{ *models.TableBookingRequest }

func (f tableBookingForm) stamp(id, userID string, at time.Time) {
	f.ID, f.UserID, f.CreatedAt = id, userID, at
}

// submit decodes, validates, stamps and stores one form document.
func submit(w http.ResponseWriter, r *http.Request, coll *mongo.Collection, doc any, form submission, what string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := utils.DecodeJSON(r, doc); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(doc); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	form.stamp(utils.GetUUID(), utils.GetUserIDFromRequest(r), time.Now().UTC())

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		log.Error().Err(err).Str("form", what).Msg("submission insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to submit "+what)
		return
	}
	log.Info().Str("form", what).Msg("submission received")
	utils.RespondWithJSON(w, http.StatusCreated, doc)
}

func list[T any](w http.ResponseWriter, r *http.Request, coll *mongo.Collection, what string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := utils.ParseQueryOptions(r)
	cur, err := coll.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		log.Error().Err(err).Str("form", what).Msg("submission list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch "+what)
		return
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		log.Error().Err(err).Str("form", what).Msg("submission decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch "+what)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

// POST /api/contact
func SubmitContact(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var m models.ContactMessage
	submit(w, r, db.ContactCollection, &m, contactForm{&m}, "message")
}

// POST /api/occasions
func SubmitOccasion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var o models.Occasion
	submit(w, r, db.OccasionCollection, &o, occasionForm{&o}, "occasion")
}

// POST /api/table-bookings
func SubmitTableBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var b models.TableBookingRequest
	submit(w, r, db.TableBookingRequestColl, &b, tableBookingForm{&b}, "table booking")
}

func GetContacts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list[models.ContactMessage](w, r, db.ContactCollection, "messages")
}

func GetOccasions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list[models.Occasion](w, r, db.OccasionCollection, "occasions")
}

func GetTableBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list[models.TableBookingRequest](w, r, db.TableBookingRequestColl, "table bookings")
}
