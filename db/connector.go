// Package db owns the MongoDB client handle and the collection indexes the
// facades depend on.
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	FriendsCollection   = "friends"
	PositionsCollection = "positions"

	pingTimeout = 5 * time.Second
)

// Connector lazily creates a single mongo client and hands out the same
// handle on every call.
type Connector struct {
	uri string
	log *zap.Logger

	mu     sync.Mutex
	client *mongo.Client
}

func NewConnector(uri string, log *zap.Logger) *Connector {
	return &Connector{uri: uri, log: log}
}

// Connect returns the cached client, dialing and pinging on first use.
func (c *Connector) Connect(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.uri == "" {
		return nil, errors.New("no database connection string configured")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	c.log.Info("connected to MongoDB")
	c.client = client
	return client, nil
}

// Close disconnects the cached client, if any. A later Connect dials again.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

// EnsureIndexes creates the unique email indexes and the 2dsphere index on
// positions.location. CreateMany is idempotent for identical specs.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(FriendsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", FriendsCollection, err)
	}

	_, err = db.Collection(PositionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", PositionsCollection, err)
	}
	return nil
}
