// Package testutil provides a throwaway MongoDB database and fixtures for
// integration tests. Tests that need it are skipped unless MONGO_TEST_URI is set.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"geofriends/db"
	"geofriends/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const testTimeout = 10 * time.Second

// TestContext returns a context bounded for a single test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), testTimeout)
}

// SetupTestDB connects to MONGO_TEST_URI, creates a uniquely named database
// with the production indexes and drops it when the test ends.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set; skipping MongoDB integration test")
	}

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect test mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping test mongo: %v", err)
	}

	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	database := client.Database(name)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return database
}

// Fixtures inserts documents directly, bypassing the facades.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, database *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: database, t: t}
}

// CreateFriend stores a friend whose password is hashed at the minimum bcrypt cost.
func (f *Fixtures) CreateFriend(ctx context.Context, firstName, lastName, email, password, role string) models.Friend {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash fixture password: %v", err)
	}
	friend := models.Friend{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	res, err := f.db.Collection(db.FriendsCollection).InsertOne(ctx, friend)
	if err != nil {
		f.t.Fatalf("insert fixture friend: %v", err)
	}
	friend.ID = res.InsertedID.(primitive.ObjectID)
	return friend
}
