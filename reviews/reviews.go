package reviews

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"trattoria/db"
	"trattoria/menu"
	"trattoria/models"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Summarize returns the mean rating rounded to one decimal and the count.
func Summarize(ratings []int) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return math.Round(avg*10) / 10, len(ratings)
}

// refresh recomputes the rating stored on a menu item from its reviews.
func refresh(ctx context.Context, item *models.MenuItem) error {
	cur, err := db.ReviewCollection.Find(ctx, bson.M{"menu_item_id": item.ID},
		options.Find().SetProjection(bson.M{"rating": 1}))
	if err != nil {
		return err
	}
	var rows []struct {
		Rating int `bson:"rating"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return err
	}
	ratings := make([]int, len(rows))
	for i, r := range rows {
		ratings[i] = r.Rating
	}
	avg, n := Summarize(ratings)
	_, err = db.MenuCollection.UpdateOne(ctx, bson.M{"id": item.ID},
		bson.M{"$set": bson.M{"rating": avg, "review_count": n}})
	if err != nil {
		return err
	}
	menu.Invalidate(ctx, item.Category)
	return nil
}

func loadItem(ctx context.Context, w http.ResponseWriter, id string) (*models.MenuItem, bool) {
	var item models.MenuItem
	err := db.MenuCollection.FindOne(ctx, bson.M{"id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Menu item not found")
		return nil, false
	} else if err != nil {
		log.Error().Err(err).Msg("reviews: load item failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load menu item")
		return nil, false
	}
	return &item, true
}

// GET /api/menu/:id/reviews
func GetReviews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := utils.ParseQueryOptions(r)
	cur, err := db.ReviewCollection.Find(ctx, bson.M{"menu_item_id": ps.ByName("id")}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		log.Error().Err(err).Msg("reviews: list failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve reviews")
		return
	}
	list := []models.Review{}
	if err := cur.All(ctx, &list); err != nil {
		log.Error().Err(err).Msg("reviews: decode failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve reviews")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// POST /api/menu/:id/reviews
func AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var review models.Review
	if err := utils.DecodeJSON(r, &review); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := utils.Validate(review); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, ok := loadItem(ctx, w, ps.ByName("id"))
	if !ok {
		return
	}

	review.ID = utils.GetUUID()
	review.MenuItemID = item.ID
	review.UserID = utils.GetUserIDFromRequest(r)
	review.Username = utils.GetUsernameFromRequest(r)
	review.CreatedAt = time.Now().UTC()

	if _, err := db.ReviewCollection.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			utils.RespondWithError(w, http.StatusConflict, "You have already reviewed this item")
			return
		}
		log.Error().Err(err).Msg("reviews: insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save review")
		return
	}
	if err := refresh(ctx, item); err != nil {
		log.Error().Err(err).Str("item", item.ID).Msg("reviews: rating refresh failed")
	}
	utils.RespondWithJSON(w, http.StatusCreated, review)
}

// DELETE /api/menu/:id/reviews/:reviewId (author or admin)
func DeleteReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, ok := loadItem(ctx, w, ps.ByName("id"))
	if !ok {
		return
	}
	filter := bson.M{"id": ps.ByName("reviewId"), "menu_item_id": item.ID}
	if !utils.IsAdminRequest(r) {
		filter["user_id"] = utils.GetUserIDFromRequest(r)
	}
	res, err := db.ReviewCollection.DeleteOne(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("reviews: delete failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete review")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Review not found")
		return
	}
	if err := refresh(ctx, item); err != nil {
		log.Error().Err(err).Str("item", item.ID).Msg("reviews: rating refresh failed")
	}
	w.WriteHeader(http.StatusNoContent)
}
