package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	CollectionUsers    = "users"
	CollectionLaunches = "bundler-projects"
	CollectionVanity   = "pump-vanity-keypairs"
)

// Mongo is a Store backed by MongoDB.
type Mongo struct {
	client   *mongo.Client
	users    *mongo.Collection
	launches *mongo.Collection
	vanity   *mongo.Collection
	now      func() time.Time
}

// NewMongo connects to uri, pings the primary and ensures the unique indexes.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	m := &Mongo{
		client:   client,
		users:    db.Collection(CollectionUsers),
		launches: db.Collection(CollectionLaunches),
		vanity:   db.Collection(CollectionVanity),
		now:      time.Now,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: options.Index().SetUnique(true)}
	}
	if _, err := m.users.Indexes().CreateOne(ctx, unique("telegramId")); err != nil {
		return fmt.Errorf("index %s: %w", CollectionUsers, err)
	}
	if _, err := m.launches.Indexes().CreateOne(ctx, unique("mint")); err != nil {
		return fmt.Errorf("index %s: %w", CollectionLaunches, err)
	}
	if _, err := m.vanity.Indexes().CreateOne(ctx, unique("publicKey")); err != nil {
		return fmt.Errorf("index %s: %w", CollectionVanity, err)
	}
	return nil
}

func (m *Mongo) FindUser(ctx context.Context, telegramID string) (*User, error) {
	var u User
	err := m.users.FindOne(ctx, bson.M{"telegramId": telegramID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", telegramID, err)
	}
	return &u, nil
}

func (m *Mongo) SaveUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	_, err := m.users.ReplaceOne(ctx, bson.M{"telegramId": u.TelegramID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.TelegramID, err)
	}
	return nil
}

func (m *Mongo) SaveLaunch(ctx context.Context, rec *LaunchRecord) error {
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	_, err := m.launches.ReplaceOne(ctx, bson.M{"mint": rec.Mint}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save launch %s: %w", rec.Mint, err)
	}
	return nil
}

func (m *Mongo) FindLaunch(ctx context.Context, mint string) (*LaunchRecord, error) {
	var rec LaunchRecord
	err := m.launches.FindOne(ctx, bson.M{"mint": mint}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find launch %s: %w", mint, err)
	}
	return &rec, nil
}

func (m *Mongo) AddVanity(ctx context.Context, kp VanityKeypair) error {
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = m.now()
	}
	if _, err := m.vanity.InsertOne(ctx, kp); err != nil {
		return fmt.Errorf("add vanity %s: %w", kp.PublicKey, err)
	}
	return nil
}

// ClaimVanity flips isValid in a single findAndModify so concurrent launches never share a mint.
func (m *Mongo) ClaimVanity(ctx context.Context) (*VanityKeypair, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	var kp VanityKeypair
	err := m.vanity.FindOneAndUpdate(ctx, bson.M{"isValid": true}, bson.M{"$set": bson.M{"isValid": false}}, opts).Decode(&kp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim vanity: %w", err)
	}
	return &kp, nil
}

func (m *Mongo) CountVanity(ctx context.Context) (int64, error) {
	n, err := m.vanity.CountDocuments(ctx, bson.M{"isValid": true})
	if err != nil {
		return 0, fmt.Errorf("count vanity: %w", err)
	}
	return n, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
