package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Header carries the client-chosen key for a checkout request.
const Header = "Idempotency-Key"

const pending = "pending"

// ErrInFlight means another request with the same key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

// Store remembers which order a checkout key produced.
type Store interface {
	// Reserve claims key. It returns the order id of a finished request, or
	// 0 with ok=true when the caller now owns the key.
	Reserve(ctx context.Context, key string) (orderID int64, ok bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

// Key reads and trims the idempotency header.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// RedisStore keeps keys in redis with SETNX so only one request owns a key.
type RedisStore struct {
	client  *redis.Client
	service string
	ttl     time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(addr, service string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		service: service,
		ttl:     ttl,
	}
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (int64, bool, error) {
	k := s.generateKey(key)
	claimed, err := s.client.SetNX(ctx, k, pending, s.ttl).Result()
	if err != nil {
		return 0, false, err
	}
	if claimed {
		return 0, true, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		claimed, err = s.client.SetNX(ctx, k, pending, s.ttl).Result()
		if err != nil {
			return 0, false, err
		}
		if claimed {
			return 0, true, nil
		}
		return 0, false, ErrInFlight
	}
	if err != nil {
		return 0, false, err
	}
	return parseValue(val)
}

func (s *RedisStore) Complete(ctx context.Context, key string, orderID int64) error {
	return s.client.Set(ctx, s.generateKey(key), strconv.FormatInt(orderID, 10), s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.generateKey(key)).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) generateKey(key string) string {
	return fmt.Sprintf("%s:checkout:%s", s.service, key)
}

func parseValue(val string) (int64, bool, error) {
	if val == pending {
		return 0, false, ErrInFlight
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency: corrupt value %q: %w", val, err)
	}
	return id, false, nil
}
