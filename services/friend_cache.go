package services

import (
	"context"
	"encoding/json"
	"time"

	"geofriends/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// FriendCache is a read-through cache in front of the friends collection.
// Cache failures are logged and treated as misses.
type FriendCache interface {
	Get(ctx context.Context, email string) (*models.Friend, bool)
	Set(ctx context.Context, friend *models.Friend)
	Delete(ctx context.Context, emails ...string)
}

// NoopFriendCache never hits.
type NoopFriendCache struct{}

func (NoopFriendCache) Get(context.Context, string) (*models.Friend, bool) { return nil, false }
func (NoopFriendCache) Set(context.Context, *models.Friend)                {}
func (NoopFriendCache) Delete(context.Context, ...string)                  {}

// cachedFriend keeps the password hash, which models.Friend hides from JSON.
type cachedFriend struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
}

// RedisFriendCache stores friends as JSON under "friend:<email>".
type RedisFriendCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisFriendCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisFriendCache {
	return &RedisFriendCache{client: client, ttl: ttl, log: log}
}

func friendKey(email string) string {
	return "friend:" + email
}

func (c *RedisFriendCache) Get(ctx context.Context, email string) (*models.Friend, bool) {
	data, err := c.client.Get(ctx, friendKey(email)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("friend cache get failed", zap.String("email", email), zap.Error(err))
		}
		return nil, false
	}

	var cf cachedFriend
	if err := json.Unmarshal(data, &cf); err != nil {
		c.log.Warn("friend cache entry unreadable", zap.String("email", email), zap.Error(err))
		return nil, false
	}
	id, err := primitive.ObjectIDFromHex(cf.ID)
	if err != nil {
		return nil, false
	}
	return &models.Friend{
		ID:           id,
		FirstName:    cf.FirstName,
		LastName:     cf.LastName,
		Email:        cf.Email,
		PasswordHash: cf.PasswordHash,
		Role:         cf.Role,
	}, true
}

func (c *RedisFriendCache) Set(ctx context.Context, friend *models.Friend) {
	data, err := json.Marshal(cachedFriend{
		ID:           friend.ID.Hex(),
		FirstName:    friend.FirstName,
		LastName:     friend.LastName,
		Email:        friend.Email,
		PasswordHash: friend.PasswordHash,
		Role:         friend.Role,
	})
	if err != nil {
		c.log.Warn("friend cache marshal failed", zap.String("email", friend.Email), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, friendKey(friend.Email), data, c.ttl).Err(); err != nil {
		c.log.Warn("friend cache set failed", zap.String("email", friend.Email), zap.Error(err))
	}
}

func (c *RedisFriendCache) Delete(ctx context.Context, emails ...string) {
	if len(emails) == 0 {
		return
	}
	keys := make([]string, 0, len(emails))
	for _, email := range emails {
		keys = append(keys, friendKey(email))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("friend cache delete failed", zap.Strings("emails", emails), zap.Error(err))
	}
}
