package services

import (
	"context"
	"net/http"
	"time"

	"geofriends/db"
	"geofriends/models"
	"geofriends/utils/errors"
	"geofriends/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// FriendLookup is the part of the friend facade positions need.
type FriendLookup interface {
	GetFriend(ctx context.Context, email string) (*models.Friend, error)
}

// PositionService is the position facade: one upserted position per email
// and proximity queries served by the 2dsphere index.
type PositionService struct {
	collection *mongo.Collection
	friends    FriendLookup
	log        *zap.Logger
	now        func() time.Time
}

func NewPositionService(database *mongo.Database, friends FriendLookup, log *zap.Logger) *PositionService {
	return &PositionService{
		collection: database.Collection(db.PositionsCollection),
		friends:    friends,
		log:        log,
		now:        time.Now,
	}
}

// AddOrUpdatePosition stores the friend's current location, replacing any
// earlier one.
func (s *PositionService) AddOrUpdatePosition(ctx context.Context, email string, lon, lat float64) (*models.Position, error) {
	if err := validation.ValidateCoordinates(lon, lat); err != nil {
		return nil, err
	}
	email = validation.NormalizeEmail(email)

	friend, err := s.friends.GetFriend(ctx, email)
	if err != nil {
		return nil, err
	}
	if friend == nil {
		return nil, errors.NewNotFoundError("user not found")
	}

	pos := models.Position{
		Email:       email,
		Name:        friend.FullName(),
		LastUpdated: s.now().UTC().Truncate(time.Millisecond),
		Location:    models.NewPoint(lon, lat),
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Position
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, bson.M{"$set": pos}, opts).Decode(&stored)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to store position", http.StatusInternalServerError)
	}

	s.log.Debug("position updated", zap.String("email", email), zap.Float64("lon", lon), zap.Float64("lat", lat))
	return &stored, nil
}

// FindNearbyFriends records the caller's position, then returns the other
// friends within maxDistance meters, nearest first.
func (s *PositionService) FindNearbyFriends(ctx context.Context, email string, lon, lat, maxDistance float64) ([]models.Position, error) {
	if err := validation.ValidateDistance(maxDistance); err != nil {
		return nil, err
	}
	if _, err := s.AddOrUpdatePosition(ctx, email, lon, lat); err != nil {
		return nil, err
	}

	filter := bson.M{
		"email": bson.M{"$ne": validation.NormalizeEmail(email)},
		"location": bson.M{
			"$near": bson.M{
				"$geometry":    models.NewPoint(lon, lat),
				"$maxDistance": maxDistance,
			},
		},
	}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to query nearby friends", http.StatusInternalServerError)
	}
	defer cursor.Close(ctx)

	positions := []models.Position{}
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to decode positions", http.StatusInternalServerError)
	}
	s.log.Debug("nearby friends", zap.String("email", email), zap.Int("count", len(positions)), zap.Float64("maxDistance", maxDistance))
	return positions, nil
}

// GetAllPositions returns every stored position.
func (s *PositionService) GetAllPositions(ctx context.Context) ([]models.Position, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load positions", http.StatusInternalServerError)
	}
	defer cursor.Close(ctx)

	positions := []models.Position{}
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to decode positions", http.StatusInternalServerError)
	}
	return positions, nil
}
