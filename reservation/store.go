package reservation

import (
	"context"
	"errors"
	"time"

	"trattoria/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps tables and reservations in MongoDB.
type MongoStore struct {
	Tables       *mongo.Collection
	Reservations *mongo.Collection
}

func (m *MongoStore) BookableTables(ctx context.Context) ([]models.Table, error) {
	cur, err := m.Tables.Find(ctx, bson.M{"status": models.TableActive, "online_bookable": true},
		options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var tables []models.Table
	if err := cur.All(ctx, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (m *MongoStore) TablesByIDs(ctx context.Context, ids []string) ([]models.Table, error) {
	cur, err := m.Tables.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var tables []models.Table
	if err := cur.All(ctx, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (m *MongoStore) Conflicts(ctx context.Context, tableIDs []string, start, end time.Time) ([]models.Reservation, error) {
	filter := bson.M{
		"status": models.ReservationConfirmed,
		"start":  bson.M{"$lt": end},
		"end":    bson.M{"$gt": start},
	}
	if tableIDs != nil {
		filter["table_ids"] = bson.M{"$in": tableIDs}
	}
	cur, err := m.Reservations.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) Insert(ctx context.Context, r *models.Reservation) error {
	_, err := m.Reservations.InsertOne(ctx, r)
	return err
}

func (m *MongoStore) Get(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := m.Reservations.FindOne(ctx, bson.M{"id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MongoStore) ByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	cur, err := m.Reservations.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Reservation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) SetStatus(ctx context.Context, id string, from []string, status string, at time.Time) error {
	res, err := m.Reservations.UpdateOne(ctx,
		bson.M{"id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": status, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context, f ListFilter) ([]models.Reservation, error) {
	filter := bson.M{}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	if f.Limit > 0 {
		opts.SetSkip(f.Skip).SetLimit(f.Limit)
	}
	cur, err := m.Reservations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Reservation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
