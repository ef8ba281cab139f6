package redis

import (
	"auction-settlement/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// RedisViewCache stores listing projections as hashes that expire after ttl.
type RedisViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisViewCache(client *redis.Client, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl}
}

func viewKey(listingID string) string {
	return fmt.Sprintf("listing:%s:view", listingID)
}

func (r *RedisViewCache) GetView(ctx context.Context, listingID string) (*domain.ListingView, bool, error) {
	result, err := r.client.HGetAll(ctx, viewKey(listingID)).Result()
	if err != nil {
		return nil, false, err
	}
	raw, ok := result["listing"]
	if !ok {
		return nil, false, nil
	}

	var listing domain.Listing
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		return nil, false, fmt.Errorf("redis: decode view %s: %w", listingID, err)
	}
	view := &domain.ListingView{Listing: &listing}

	if s := result["highest_bid"]; s != "" {
		highest, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false, fmt.Errorf("redis: decode view %s: %w", listingID, err)
		}
		view.HighestBid = &highest
	}
	if s := result["bid_count"]; s != "" {
		view.BidCount, err = strconv.Atoi(s)
		if err != nil {
			return nil, false, fmt.Errorf("redis: decode view %s: %w", listingID, err)
		}
	}
	return view, true, nil
}

func (r *RedisViewCache) StoreView(ctx context.Context, view *domain.ListingView) error {
	if r.ttl <= 0 || view == nil || view.Listing == nil {
		return nil
	}
	listing, err := json.Marshal(view.Listing)
	if err != nil {
		return err
	}
	highest := ""
	if view.HighestBid != nil {
		highest = view.HighestBid.String()
	}

	key := viewKey(view.Listing.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"listing", listing,
			"highest_bid", highest,
			"bid_count", view.BidCount,
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	return err
}

func (r *RedisViewCache) Invalidate(ctx context.Context, listingID string) error {
	return r.client.Del(ctx, viewKey(listingID)).Err()
}

var _ domain.ListingViewCache = (*RedisViewCache)(nil)
