// Package cache fronts the ticket repository with a redis read-through
// layer. The store remains the sole source of truth: every mutation
// invalidates the affected keys and entries carry a TTL as an upper bound
// on staleness, so a restarted process rebuilds purely from the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/repository"
)

// TicketCache decorates a TicketRepository. It satisfies the same interface
// so call sites stay unaware of the layer.
type TicketCache struct {
	inner  repository.TicketRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ repository.TicketRepository = (*TicketCache)(nil)

// NewTicketCache wraps inner with a redis cache. A nil client disables
// caching and delegates every call.
func NewTicketCache(inner repository.TicketRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *TicketCache {
	return &TicketCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func channelKey(channelID string) string { return "ticket:channel:" + channelID }
func userKey(userID string) string       { return "ticket:user_open:" + userID }

func (c *TicketCache) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := c.inner.Create(ctx, ticket); err != nil {
		return err
	}
	c.invalidate(ctx, ticket.ChannelID, ticket.UserID)
	return nil
}

func (c *TicketCache) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	if ticket := c.lookup(ctx, channelKey(channelID)); ticket != nil {
		return ticket, nil
	}
	ticket, err := c.inner.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, channelKey(channelID), ticket)
	return ticket, nil
}

func (c *TicketCache) GetOpenByUser(ctx context.Context, userID string) (*domain.Ticket, error) {
	if ticket := c.lookup(ctx, userKey(userID)); ticket != nil {
		return ticket, nil
	}
	ticket, err := c.inner.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userKey(userID), ticket)
	return ticket, nil
}

func (c *TicketCache) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	return c.inner.ListOpen(ctx)
}

func (c *TicketCache) Claim(ctx context.Context, channelID, modID, modUsername string) error {
	if err := c.inner.Claim(ctx, channelID, modID, modUsername); err != nil {
		return err
	}
	c.invalidateChannel(ctx, channelID)
	return nil
}

func (c *TicketCache) Transfer(ctx context.Context, channelID, modID, modUsername string) error {
	if err := c.inner.Transfer(ctx, channelID, modID, modUsername); err != nil {
		return err
	}
	c.invalidateChannel(ctx, channelID)
	return nil
}

func (c *TicketCache) Close(ctx context.Context, channelID string, closedAt time.Time) error {
	if err := c.inner.Close(ctx, channelID, closedAt); err != nil {
		// A row already closed elsewhere can still have cached keys.
		if errors.Is(err, repository.ErrNotOpen) {
			c.invalidateChannel(ctx, channelID)
		}
		return err
	}
	c.invalidateChannel(ctx, channelID)
	return nil
}

func (c *TicketCache) CloseByUser(ctx context.Context, userID string, closedAt time.Time) error {
	// Resolve the open row first; after the close it no longer answers
	// GetOpenByUser and the channel key would be stranded.
	channelID := ""
	if c.client != nil {
		if ticket := c.lookup(ctx, userKey(userID)); ticket != nil {
			channelID = ticket.ChannelID
		} else if ticket, err := c.inner.GetOpenByUser(ctx, userID); err == nil {
			channelID = ticket.ChannelID
		}
	}
	if err := c.inner.CloseByUser(ctx, userID, closedAt); err != nil {
		return err
	}
	c.invalidate(ctx, channelID, userID)
	return nil
}

func (c *TicketCache) lookup(ctx context.Context, key string) *domain.Ticket {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		c.logger.Warn("discarding malformed cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil
	}
	return &ticket
}

func (c *TicketCache) store(ctx context.Context, key string, ticket *domain.Ticket) {
	if c.client == nil || ticket == nil {
		return
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidateChannel drops the channel key and the owner's open-ticket key.
// The owner comes from the cached row when present and from the store
// otherwise, so a close by channel id cannot strand a user key that only
// GetOpenByUser populated.
func (c *TicketCache) invalidateChannel(ctx context.Context, channelID string) {
	if c.client == nil {
		return
	}
	userID := ""
	if ticket := c.lookup(ctx, channelKey(channelID)); ticket != nil {
		userID = ticket.UserID
	} else if ticket, err := c.inner.GetByChannel(ctx, channelID); err == nil {
		userID = ticket.UserID
	}
	c.invalidate(ctx, channelID, userID)
}

func (c *TicketCache) invalidate(ctx context.Context, channelID, userID string) {
	if c.client == nil {
		return
	}
	keys := make([]string, 0, 2)
	if channelID != "" {
		keys = append(keys, channelKey(channelID))
	}
	if userID != "" {
		keys = append(keys, userKey(userID))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
