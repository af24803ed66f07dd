package menu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"trattoria/db"
	"trattoria/filemgr"
	"trattoria/models"
	"trattoria/rdx"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cacheTTL = 5 * time.Minute

// ForLocation keeps the items available at location and applies its price
// override. An empty location returns items unchanged.
func ForLocation(items []models.MenuItem, location string) []models.MenuItem {
	out := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		price, ok := it.EffectivePrice(location)
		if !ok {
			continue
		}
		if location != "" {
			it.Price = price
		}
		out = append(out, it)
	}
	return out
}

// Search keeps items whose name or description contains term.
func Search(items []models.MenuItem, term string) []models.MenuItem {
	if term == "" {
		return items
	}
	out := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		if utils.ContainsIgnoreCase(it.Name, term) || utils.ContainsIgnoreCase(it.Description, term) {
			out = append(out, it)
		}
	}
	return out
}

func cacheKey(category string) string {
	if category == "" {
		return "menu:all"
	}
	return "menu:cat:" + category
}

func cached(ctx context.Context, key string, dst any) bool {
	if rdx.Conn == nil {
		return false
	}
	raw, err := rdx.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}

func store(ctx context.Context, key string, v any) {
	if rdx.Conn == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := rdx.SetWithExpiry(ctx, key, string(data), cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("menu cache write failed")
	}
}

// Invalidate drops every cached menu list touched by category.
func Invalidate(ctx context.Context, categories ...string) {
	if rdx.Conn == nil {
		return
	}
	keys := []string{cacheKey("")}
	for _, c := range categories {
		if c != "" {
			keys = append(keys, cacheKey(c))
		}
	}
	if err := rdx.Del(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("menu cache invalidation failed")
	}
}

// GET /api/menu?category=&location=&q=
func GetMenu(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category := r.URL.Query().Get("category")
	key := cacheKey(category)

	var items []models.MenuItem
	if !cached(ctx, key, &items) {
		filter := bson.M{"is_active": true}
		if category != "" {
			filter["category"] = category
		}
		cur, err := db.MenuCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
		if err != nil {
			log.Error().Err(err).Msg("menu: list failed")
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch menu")
			return
		}
		items = []models.MenuItem{}
		if err := cur.All(ctx, &items); err != nil {
			log.Error().Err(err).Msg("menu: decode failed")
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch menu")
			return
		}
		store(ctx, key, items)
	}
	items = Search(items, r.URL.Query().Get("q"))
	utils.RespondWithJSON(w, http.StatusOK, ForLocation(items, r.URL.Query().Get("location")))
}

func findItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := db.MenuCollection.FindOne(ctx, bson.M{"id": id}).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func respondFindErr(w http.ResponseWriter, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondWithError(w, http.StatusNotFound, "Menu item not found")
		return
	}
	log.Error().Err(err).Msg("menu: lookup failed")
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch menu item")
}

// GET /api/menu/:id
func GetMenuItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := findItem(ctx, ps.ByName("id"))
	if err != nil {
		respondFindErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, item)
}

func checkItem(item *models.MenuItem) error {
	if err := utils.Validate(item); err != nil {
		return err
	}
	if err := item.Check(); err != nil {
		return utils.Invalid("%s", err.Error())
	}
	return nil
}

// POST /api/menu (admin)
func CreateMenuItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item := models.MenuItem{IsActive: true}
	if err := utils.DecodeJSON(r, &item); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := checkItem(&item); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ID = utils.GetUUID()
	item.Image, item.Thumbnail = "", ""
	item.ReviewCount = 0

	if _, err := db.MenuCollection.InsertOne(ctx, item); err != nil {
		log.Error().Err(err).Msg("menu: insert failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create menu item")
		return
	}
	Invalidate(ctx, item.Category)
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

// PUT /api/menu/:id (admin) replaces the editable fields of an item.
func UpdateMenuItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing, err := findItem(ctx, ps.ByName("id"))
	if err != nil {
		respondFindErr(w, err)
		return
	}
	item := *existing
	if err := utils.DecodeJSON(r, &item); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	item.ID, item.Image, item.Thumbnail = existing.ID, existing.Image, existing.Thumbnail
	item.ReviewCount = existing.ReviewCount
	if existing.ReviewCount > 0 {
		item.Rating = existing.Rating
	}
	if err := checkItem(&item); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := db.MenuCollection.ReplaceOne(ctx, bson.M{"id": item.ID}, item); err != nil {
		log.Error().Err(err).Msg("menu: replace failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update menu item")
		return
	}
	Invalidate(ctx, existing.Category, item.Category)
	utils.RespondWithJSON(w, http.StatusOK, item)
}

// DELETE /api/menu/:id (admin)
func DeleteMenuItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var item models.MenuItem
	err := db.MenuCollection.FindOneAndDelete(ctx, bson.M{"id": ps.ByName("id")}).Decode(&item)
	if err != nil {
		respondFindErr(w, err)
		return
	}
	Invalidate(ctx, item.Category)
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true})
}

type Images struct {
	Files *filemgr.Store
}

// POST /api/menu/:id/image (admin) multipart field "image".
func (h *Images) Upload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	existing, err := findItem(ctx, ps.ByName("id"))
	if err != nil {
		respondFindErr(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, filemgr.MaxImageSize+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	saved, err := h.Files.SaveImage(file, header.Filename, "menu")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err = db.MenuCollection.UpdateOne(ctx, bson.M{"id": existing.ID},
		bson.M{"$set": bson.M{"image": saved.Image, "thumbnail": saved.Thumbnail}})
	if err != nil {
		h.Files.Remove(*saved)
		log.Error().Err(err).Msg("menu: image update failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}
	h.Files.Remove(filemgr.Saved{Image: existing.Image, Thumbnail: existing.Thumbnail})
	Invalidate(ctx, existing.Category)
	utils.RespondWithJSON(w, http.StatusOK, saved)
}
