package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"trattoria/models"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyStore reserves keys and keeps the response recorded for them.
type IdempotencyStore interface {
	// Begin reserves rec.Key. When the key is already taken it returns the
	// existing record and false.
	Begin(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error)
	Finish(ctx context.Context, key string, status int, body []byte) error
	// Release forgets a key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}

type MongoIdempotency struct {
	C *mongo.Collection
}

func (s *MongoIdempotency) Begin(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error) {
	_, err := s.C.InsertOne(ctx, rec)
	if err == nil {
		return nil, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, err
	}
	var existing models.IdempotencyRecord
	if err := s.C.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing); err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *MongoIdempotency) Finish(ctx context.Context, key string, status int, body []byte) error {
	_, err := s.C.UpdateOne(ctx, bson.M{"key": key},
		bson.M{"$set": bson.M{"done": true, "status": status, "body": body}})
	return err
}

func (s *MongoIdempotency) Release(ctx context.Context, key string) error {
	_, err := s.C.DeleteOne(ctx, bson.M{"key": key})
	return err
}

// MemoryIdempotency is an in-process store for single-instance deployments
// and tests.
type MemoryIdempotency struct {
	mu   sync.Mutex
	recs map[string]models.IdempotencyRecord
	now  func() time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{recs: make(map[string]models.IdempotencyRecord), now: time.Now}
}

func (s *MemoryIdempotency) Begin(_ context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.recs[rec.Key]; ok && s.now().Before(existing.ExpiresAt) {
		return &existing, false, nil
	}
	s.recs[rec.Key] = rec
	return nil, true, nil
}

func (s *MemoryIdempotency) Finish(_ context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if !ok {
		return errors.New("unknown idempotency key")
	}
	rec.Done, rec.Status, rec.Body = true, status, append([]byte(nil), body...)
	s.recs[key] = rec
	return nil
}

func (s *MemoryIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.recs, key)
	s.mu.Unlock()
	return nil
}

func computeRequestHash(r *http.Request, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyScope namespaces keys per user. Anonymous callers are scoped
// by client address so unrelated clients cannot replay each other.
func idempotencyScope(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "anon:" + utils.ClientIP(r)
}

// captureWriter records the status and body written by a handler.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
		c.ResponseWriter.WriteHeader(code)
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotent replays the stored response when a client repeats a request
// with the same Idempotency-Key.
//   - No header: pass through.
//   - Same key with a different body or path: 409.
//   - Same key while the first request is still running: 409.
//   - Server errors are not recorded so the client may retry them.
//
// Keys are scoped per user, or per client address for anonymous callers,
// so it must run after authentication.
func Idempotent(store IdempotencyStore) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next(w, r, ps)
				return
			}
			if len(key) > 128 {
				utils.RespondWithError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			userID := utils.GetUserIDFromRequest(r)
			now := time.Now().UTC()
			rec := models.IdempotencyRecord{
				Key:         idempotencyScope(r, userID) + ":" + key,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: computeRequestHash(r, body, userID),
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyTTL),
			}

			ctx := r.Context()
			existing, fresh, err := store.Begin(ctx, rec)
			if err != nil {
				log.Error().Err(err).Msg("idempotency lookup failed")
				utils.RespondWithError(w, http.StatusInternalServerError, "Idempotency lookup failed")
				return
			}
			if !fresh {
				switch {
				case existing.RequestHash != rec.RequestHash:
					utils.RespondWithError(w, http.StatusConflict, "Idempotency-Key was used with a different request")
				case !existing.Done:
					utils.RespondWithError(w, http.StatusConflict, "A request with this Idempotency-Key is in progress")
				default:
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(existing.Status)
					w.Write(existing.Body)
				}
				return
			}

			cw := &captureWriter{ResponseWriter: w}
			next(cw, r, ps)
			if cw.status == 0 {
				cw.status = http.StatusOK
			}

			// the client may have gone away; the record must still settle
			bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cw.status >= 500 {
				err = store.Release(bg, rec.Key)
			} else {
				err = store.Finish(bg, rec.Key, cw.status, cw.buf.Bytes())
			}
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("idempotency record update failed")
			}
		}
	}
}
