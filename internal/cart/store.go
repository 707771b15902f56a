package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/farmconnect/marketplace/internal/domain"
)

// RedisStore keeps each cart in three keys: a hash of listing id to quantity,
// a sorted set remembering when each listing first entered the cart, and the
// counter that feeds the sorted set scores. All three share one TTL that is
// refreshed on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func itemsKey(userID string) string { return "cart:" + userID }
func orderKey(userID string) string { return "cart:" + userID + ":order" }
func seqKey(userID string) string   { return "cart:" + userID + ":seq" }

// consumeScript subtracts purchased quantities and drops lines that reach
// zero. KEYS: items hash, order zset. ARGV: listing id, quantity pairs.
var consumeScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
	local left = redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
	if left <= 0 then
		redis.call('HDEL', KEYS[1], ARGV[i])
		redis.call('ZREM', KEYS[2], ARGV[i])
	end
end
return 0
`)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}

// Add merges qty into the line for listingID, creating it if needed.
func (s *RedisStore) Add(ctx context.Context, userID, listingID string, qty int) error {
	seq, err := s.client.Incr(ctx, seqKey(userID)).Result()
	if err != nil {
		return unavailable("cart sequence", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, itemsKey(userID), listingID, int64(qty))
		pipe.ZAddNX(ctx, orderKey(userID), &redis.Z{Score: float64(seq), Member: listingID})
		s.touch(ctx, pipe, userID)
		return nil
	})
	if err != nil {
		return unavailable("add cart item", err)
	}

	return nil
}

func (s *RedisStore) Remove(ctx context.Context, userID, listingID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, itemsKey(userID), listingID)
		pipe.ZRem(ctx, orderKey(userID), listingID)
		s.touch(ctx, pipe, userID)
		return nil
	})
	if err != nil {
		return unavailable("remove cart item", err)
	}

	return nil
}

// Consume subtracts each line's quantity from the cart in one atomic step.
// Units added after the lines were read stay in the cart.
func (s *RedisStore) Consume(ctx context.Context, userID string, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return nil
	}

	args := make([]any, 0, 2*len(lines))
	for _, line := range lines {
		args = append(args, line.ListingID, line.Quantity)
	}

	keys := []string{itemsKey(userID), orderKey(userID)}
	if err := consumeScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return unavailable("consume cart items", err)
	}

	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, itemsKey(userID), orderKey(userID), seqKey(userID)).Err(); err != nil {
		return unavailable("clear cart", err)
	}
	return nil
}

// Lines returns the cart lines in first insertion order.
func (s *RedisStore) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	var (
		quantities *redis.StringStringMapCmd
		order      *redis.StringSliceCmd
	)

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		quantities = pipe.HGetAll(ctx, itemsKey(userID))
		order = pipe.ZRange(ctx, orderKey(userID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, unavailable("read cart", err)
	}

	qty := quantities.Val()
	lines := make([]domain.CartLine, 0, len(qty))

	for _, listingID := range order.Val() {
		raw, ok := qty[listingID]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			continue
		}
		lines = append(lines, domain.CartLine{ListingID: listingID, Quantity: n})
	}

	return lines, nil
}

func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, userID string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, itemsKey(userID), s.ttl)
	pipe.Expire(ctx, orderKey(userID), s.ttl)
	pipe.Expire(ctx, seqKey(userID), s.ttl)
}
