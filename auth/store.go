package auth

import (
	"context"
	"errors"
	"time"

	"trattoria/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoUsers struct {
	C *mongo.Collection
}

func (m *MongoUsers) Exists(ctx context.Context, email, username string) (bool, error) {
	n, err := m.C.CountDocuments(ctx, bson.M{"$or": []bson.M{{"email": email}, {"username": username}}})
	return n > 0, err
}

func (m *MongoUsers) Insert(ctx context.Context, u *models.User) error {
	_, err := m.C.InsertOne(ctx, u)
	return err
}

func (m *MongoUsers) one(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := m.C.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *MongoUsers) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.one(ctx, bson.M{"email": email})
}

func (m *MongoUsers) ByID(ctx context.Context, id string) (*models.User, error) {
	return m.one(ctx, bson.M{"id": id})
}

func (m *MongoUsers) update(ctx context.Context, filter, set bson.M) error {
	res, err := m.C.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *MongoUsers) MarkVerified(ctx context.Context, email string) error {
	return m.update(ctx, bson.M{"email": email}, bson.M{"verified": true})
}

func (m *MongoUsers) SetPassword(ctx context.Context, email, hash string) error {
	return m.update(ctx, bson.M{"email": email}, bson.M{"password": hash})
}

func (m *MongoUsers) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return m.update(ctx, bson.M{"id": id}, bson.M{"last_login": at})
}
