package eventbooking

import (
	"context"
	"errors"

	"trattoria/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	Events    *mongo.Collection
	Resources *mongo.Collection
	Bookings  *mongo.Collection
}

type cursor interface {
	All(ctx context.Context, results any) error
}

// decodeAll drains cur into a non-nil slice.
func decodeAll[T any](ctx context.Context, cur cursor) ([]T, error) {
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) Event(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := m.Events.FindOne(ctx, bson.M{"id": id}).Decode(&ev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (m *MongoStore) EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	cur, err := m.Events.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Event](ctx, cur)
}

func (m *MongoStore) ResourcesByIDs(ctx context.Context, ids []string) ([]models.EventResource, error) {
	cur, err := m.Resources.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.EventResource](ctx, cur)
}

func (m *MongoStore) ResourcesNotTiedTo(ctx context.Context, eventID string) ([]models.EventResource, error) {
	cur, err := m.Resources.Find(ctx, bson.M{"bookings": bson.M{"$ne": eventID}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.EventResource](ctx, cur)
}

func (m *MongoStore) UserHasActiveBooking(ctx context.Context, userID, eventID, date string) (bool, error) {
	n, err := m.Bookings.CountDocuments(ctx, bson.M{
		"user_id":  userID,
		"event_id": eventID,
		"date":     date,
		"status":   bson.M{"$in": []string{models.BookingConfirmed, models.BookingPending}},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (m *MongoStore) ConfirmedAttendees(ctx context.Context, eventID, date string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID, "date": date, "status": models.BookingConfirmed}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$attendees"}}}},
	}
	cur, err := m.Bookings.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (m *MongoStore) Insert(ctx context.Context, b *models.EventBooking) error {
	_, err := m.Bookings.InsertOne(ctx, b)
	return err
}

func (m *MongoStore) Get(ctx context.Context, id string) (*models.EventBooking, error) {
	var b models.EventBooking
	err := m.Bookings.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *MongoStore) ByUser(ctx context.Context, userID string) ([]models.EventBooking, error) {
	cur, err := m.Bookings.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.EventBooking](ctx, cur)
}

func (m *MongoStore) Cancel(ctx context.Context, id string) error {
	res, err := m.Bookings.UpdateOne(ctx,
		bson.M{"id": id, "status": bson.M{"$ne": models.BookingCancelled}},
		bson.M{"$set": bson.M{"status": models.BookingCancelled}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context, eventID, date, status string) ([]models.EventBooking, error) {
	filter := bson.M{}
	if eventID != "" {
		filter["event_id"] = eventID
	}
	if date != "" {
		filter["date"] = date
	}
	if status != "" {
		filter["status"] = status
	}
	cur, err := m.Bookings.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.EventBooking](ctx, cur)
}
