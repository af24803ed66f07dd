package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	Client *mongo.Client

	UserCollection          *mongo.Collection
	MenuCollection          *mongo.Collection
	CartCollection          *mongo.Collection
	OrderCollection         *mongo.Collection
	TableCollection         *mongo.Collection
	ReservationCollection   *mongo.Collection
	EventCollection         *mongo.Collection
	VenueCollection         *mongo.Collection
	ResourceCollection      *mongo.Collection
	EventBookingCollection  *mongo.Collection
	AddressCollection       *mongo.Collection
	ContactCollection       *mongo.Collection
	OccasionCollection      *mongo.Collection
	TableBookingRequestColl *mongo.Collection
	TimingCollection        *mongo.Collection
	IdempotencyCollection   *mongo.Collection
	ReviewCollection        *mongo.Collection
)

// Connect dials MongoDB, retrying the initial ping with exponential backoff,
// and binds the package level collections.
func Connect(ctx context.Context, uri, database string) error {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	b := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(30*time.Second)), ctx)
	err = backoff.RetryNotify(func() error {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return client.Ping(pctx, readpref.Primary())
	}, b, func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retry_in", next).Msg("mongodb not ready")
	})
	if err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	Client = client
	d := client.Database(database)
	UserCollection = d.Collection("users")
	MenuCollection = d.Collection("menuitems")
	CartCollection = d.Collection("carts")
	OrderCollection = d.Collection("orders")
	TableCollection = d.Collection("tables")
	ReservationCollection = d.Collection("reservations")
	EventCollection = d.Collection("eventdetails")
	VenueCollection = d.Collection("eventvenues")
	ResourceCollection = d.Collection("eventresources")
	EventBookingCollection = d.Collection("eventbookings")
	AddressCollection = d.Collection("useraddresses")
	ContactCollection = d.Collection("contactmessages")
	OccasionCollection = d.Collection("occasions")
	TableBookingRequestColl = d.Collection("tablebookings")
	TimingCollection = d.Collection("timings")
	IdempotencyCollection = d.Collection("idempotency")
	ReviewCollection = d.Collection("reviews")
	return nil
}

// CreateIndexes sets up lookup, uniqueness and TTL indexes.
func CreateIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		UserCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		MenuCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		CartCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "menu_item_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		OrderCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		TableCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AddressCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		TimingCollection: {
			{Keys: bson.D{{Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ReservationCollection: {
			{Keys: bson.D{{Key: "table_ids", Value: 1}, {Key: "status", Value: 1}, {Key: "start", Value: 1}, {Key: "end", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start", Value: 1}}},
		},
		EventBookingCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		ReviewCollection: {
			{Keys: bson.D{{Key: "menu_item_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		IdempotencyCollection: {
			{Keys: bson.M{"key": 1}, Options: options.Index().SetUnique(true).SetName("unique_key")},
			{Keys: bson.M{"expires_at": 1}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		},
	}
	for coll, idx := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func Disconnect(ctx context.Context) error {
	if Client == nil {
		return nil
	}
	return Client.Disconnect(ctx)
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
