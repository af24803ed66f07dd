package timings

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"trattoria/db"
	"trattoria/models"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Week returns one entry per weekday, Sunday first. Days without a stored
// record are reported closed.
func Week(stored []models.Timing) []models.Timing {
	week := make([]models.Timing, 7)
	for d := range week {
		week[d] = models.Timing{Day: d, Closed: true}
	}
	for _, t := range stored {
		if t.Day >= 0 && t.Day < 7 {
			week[t.Day] = t
		}
	}
	return week
}

// check validates one day's hours.
func check(t models.Timing) error {
	if err := utils.Validate(t); err != nil {
		return err
	}
	if t.Closed {
		return nil
	}
	if t.Open == "" || t.Close == "" {
		return utils.Invalid("open and close are required unless closed")
	}
	if t.Close <= t.Open {
		return utils.Invalid("close must be after open")
	}
	return nil
}

// GET /api/timings
func GetTimings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cur, err := db.TimingCollection.Find(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("timings: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch timings")
		return
	}
	var stored []models.Timing
	if err := cur.All(ctx, &stored); err != nil {
		log.Error().Err(err).Msg("timings: decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch timings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, Week(stored))
}

// PUT /api/timings/:day (admin)
func SetTiming(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	day, err := strconv.Atoi(ps.ByName("day"))
	if err != nil || day < 0 || day > 6 {
		utils.RespondWithError(w, http.StatusBadRequest, "day must be 0 (Sunday) to 6 (Saturday)")
		return
	}
	var t models.Timing
	if err := utils.DecodeJSON(r, &t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	t.Day = day
	if err := check(t); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.Closed {
		t.Open, t.Close = "", ""
	}

	_, err = db.TimingCollection.ReplaceOne(ctx, bson.M{"day": day}, t, options.Replace().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Msg("timings: upsert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save timing")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, t)
}
