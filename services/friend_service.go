package services

import (
	"context"
	stderrors "errors"
	"net/http"

	"geofriends/db"
	"geofriends/models"
	"geofriends/utils/errors"
	"geofriends/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// FriendService is the friend facade: CRUD and credential checks over the
// friends collection.
type FriendService struct {
	collection *mongo.Collection
	positions  *mongo.Collection
	cache      FriendCache
	hasher     PasswordHasher
	log        *zap.Logger
}

func NewFriendService(database *mongo.Database, hasher PasswordHasher, cache FriendCache, log *zap.Logger) *FriendService {
	if cache == nil {
		cache = NoopFriendCache{}
	}
	return &FriendService{
		collection: database.Collection(db.FriendsCollection),
		positions:  database.Collection(db.PositionsCollection),
		cache:      cache,
		hasher:     hasher,
		log:        log,
	}
}

// AddFriend validates and stores a new friend with the "user" role.
func (s *FriendService) AddFriend(ctx context.Context, in models.FriendInput) (*models.Friend, error) {
	clean, err := validation.ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(*clean.Password)
	if err != nil {
		return nil, err
	}

	friend := models.Friend{
		FirstName:    *clean.FirstName,
		LastName:     *clean.LastName,
		Email:        *clean.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}

	result, err := s.collection.InsertOne(ctx, friend)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.NewConflictError("a friend with this email already exists")
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to create friend in database", http.StatusInternalServerError)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		friend.ID = id
	}

	s.log.Info("friend created", zap.String("email", friend.Email))
	return &friend, nil
}

// EditFriend applies the fields present in `in` to the friend stored under
// email. allowRole lets admins change roles.
func (s *FriendService) EditFriend(ctx context.Context, email string, in models.FriendInput, allowRole bool) (models.EditResult, error) {
	email = validation.NormalizeEmail(email)
	clean, err := validation.ValidateEdit(in, allowRole)
	if err != nil {
		return models.EditResult{}, err
	}

	set := bson.M{}
	if clean.FirstName != nil {
		set["firstName"] = *clean.FirstName
	}
	if clean.LastName != nil {
		set["lastName"] = *clean.LastName
	}
	if clean.Email != nil {
		set["email"] = *clean.Email
	}
	if clean.Role != nil {
		set["role"] = *clean.Role
	}
	if clean.Password != nil {
		hash, err := s.hasher.Hash(*clean.Password)
		if err != nil {
			return models.EditResult{}, err
		}
		set["password"] = hash
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.EditResult{}, errors.NewConflictError("a friend with this email already exists")
		}
		return models.EditResult{}, errors.Wrap(err, "DB_ERROR", "failed to update friend", http.StatusInternalServerError)
	}
	if res.MatchedCount == 0 {
		return models.EditResult{}, errors.NewNotFoundError("user not found")
	}

	s.cache.Delete(ctx, email)
	s.syncPosition(ctx, email, clean)

	return models.EditResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// syncPosition carries an edit over to the friend's position, which is keyed
// by email and keeps a copy of the full name.
func (s *FriendService) syncPosition(ctx context.Context, email string, clean models.FriendInput) {
	set := bson.M{}
	current := email
	if clean.Email != nil && *clean.Email != email {
		s.cache.Delete(ctx, *clean.Email)
		set["email"] = *clean.Email
		current = *clean.Email
	}
	if clean.FirstName != nil || clean.LastName != nil {
		var friend models.Friend
		if err := s.collection.FindOne(ctx, bson.M{"email": current}).Decode(&friend); err != nil {
			s.log.Warn("failed to reload edited friend", zap.String("email", current), zap.Error(err))
		} else {
			set["name"] = friend.FullName()
		}
	}
	if len(set) == 0 {
		return
	}
	if _, err := s.positions.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set}); err != nil {
		s.log.Warn("failed to update position after edit", zap.String("email", email), zap.Error(err))
	}
}

// DeleteFriend removes the friend and their position. It reports false,
// without error, when no friend matched.
func (s *FriendService) DeleteFriend(ctx context.Context, email string) (bool, error) {
	email = validation.NormalizeEmail(email)

	res, err := s.collection.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return false, errors.Wrap(err, "DB_ERROR", "failed to delete friend", http.StatusInternalServerError)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}

	s.cache.Delete(ctx, email)
	if _, err := s.positions.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		s.log.Warn("failed to delete position of removed friend", zap.String("email", email), zap.Error(err))
	}
	return true, nil
}

// GetAllFriends returns every friend.
func (s *FriendService) GetAllFriends(ctx context.Context) ([]models.Friend, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load friends", http.StatusInternalServerError)
	}
	defer cursor.Close(ctx)

	friends := []models.Friend{}
	if err := cursor.All(ctx, &friends); err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to decode friends", http.StatusInternalServerError)
	}
	return friends, nil
}

// GetFriend returns the friend stored under email, or nil when there is none.
func (s *FriendService) GetFriend(ctx context.Context, email string) (*models.Friend, error) {
	email = validation.NormalizeEmail(email)

	if friend, ok := s.cache.Get(ctx, email); ok {
		return friend, nil
	}

	var friend models.Friend
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&friend)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load friend", http.StatusInternalServerError)
	}

	s.cache.Set(ctx, &friend)
	return &friend, nil
}

// GetFriendByID returns the friend with the given hex ObjectID, or nil when
// there is none or id is malformed.
func (s *FriendService) GetFriendByID(ctx context.Context, id string) (*models.Friend, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var friend models.Friend
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&friend)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load friend", http.StatusInternalServerError)
	}
	return &friend, nil
}

// GetVerifiedUser returns the friend when password matches the stored hash.
// Unknown emails and wrong passwords yield nil, nil.
func (s *FriendService) GetVerifiedUser(ctx context.Context, email, password string) (*models.Friend, error) {
	friend, err := s.GetFriend(ctx, email)
	if err != nil {
		return nil, err
	}
	if friend == nil || !s.hasher.Check(friend.PasswordHash, password) {
		return nil, nil
	}
	return friend, nil
}
