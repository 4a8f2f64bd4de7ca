package carlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lockDocument is an advisory lock row in the car_locks collection.
type lockDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Mongo is a Locker backed by unique _id inserts into a collection.
// Expired documents may be taken over by the next caller.
type Mongo struct {
	coll  *mongo.Collection
	ttl   time.Duration
	retry time.Duration
}

// NewMongo creates a Mongo locker over coll.
func NewMongo(coll *mongo.Collection, ttl time.Duration) *Mongo {
	return &Mongo{coll: coll, ttl: ttl, retry: 25 * time.Millisecond}
}

// EnsureIndexes creates the TTL index that garbage-collects stale locks.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("car_locks_ttl"),
	})
	if err != nil {
		return fmt.Errorf("failed to create car lock ttl index: %w", err)
	}
	return nil
}

// Acquire implements Locker.
func (m *Mongo) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()

	for {
		held, err := m.tryAcquire(ctx, key, owner)
		if err != nil {
			if ctx.Err() != nil {
				return nil, timeoutError(key, ctx.Err())
			}
			return nil, err
		}
		if held {
			return m.releaser(key, owner), nil
		}

		select {
		case <-ctx.Done():
			return nil, timeoutError(key, ctx.Err())
		case <-time.After(m.retry):
		}
	}
}

func (m *Mongo) tryAcquire(ctx context.Context, key, owner string) (bool, error) {
	now := time.Now().UTC()
	_, err := m.coll.InsertOne(ctx, lockDocument{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to insert car lock %s: %w", key, err)
	}

	// Someone holds it. Take it over only if their lease has lapsed.
	err = m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": key, "expiresAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"owner": owner, "expiresAt": now.Add(m.ttl), "createdAt": now}},
	).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, fmt.Errorf("failed to take over car lock %s: %w", key, err)
	}
}

func (m *Mongo) releaser(key, owner string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = m.coll.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
		})
	}
}
