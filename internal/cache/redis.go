package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"barrel-backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache key formats.
const (
	BarrelCodeKeyFmt  = "barrel:code:%s"
	BarrelLeaseKeyFmt = "barrel:lease:%s"
	UnreadCountKeyFmt = "notify:unread:%s:%s"
	UnreadRolePattern = "notify:unread:*:%s"
	defaultTTL        = 5 * time.Minute
	leaseTTL          = 10 * time.Second
)

var errLeaseLost = errors.New("cache fill lease lost")

var (
	client *redis.Client
	ttl    = defaultTTL
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Init connects to Redis. On failure the client stays nil and every helper
// degrades to a cache miss.
func Init(opts Options) error {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		client = nil
		return err
	}
	client = c
	if opts.TTL > 0 {
		ttl = opts.TTL
	}
	return nil
}

// SetClient installs an existing client, or nil to disable caching.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client, nil when caching is disabled.
func GetClient() *redis.Client {
	return client
}

// Ping reports whether Redis answers. A disabled cache is not an error.
func Ping(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}

// Enabled reports whether a client is connected.
func Enabled() bool {
	return client != nil
}

// Close releases the client.
func Close() {
	if client != nil {
		_ = client.Close()
		client = nil
	}
}

// ============================================
// Barrel Cache Functions
// ============================================

// GetCachedBarrel returns the cached barrel for a normalized code.
func GetCachedBarrel(ctx context.Context, code string) (*models.Barrel, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, fmt.Sprintf(BarrelCodeKeyFmt, code)).Bytes()
	if err != nil {
		return nil, false
	}
	var b models.Barrel
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false
	}
	return &b, true
}

// ReserveBarrel takes a fill lease on code. Call it before reading the barrel
// from storage and pass the token to FillBarrel. The token is empty when
// caching is disabled.
func ReserveBarrel(ctx context.Context, code string) string {
	if client == nil {
		return ""
	}
	token := uuid.NewString()
	if err := client.Set(ctx, fmt.Sprintf(BarrelLeaseKeyFmt, code), token, leaseTTL).Err(); err != nil {
		return ""
	}
	return token
}

// FillBarrel caches b only while the lease from ReserveBarrel is still held.
// InvalidateBarrel drops the lease, so a read that raced a commit is never
// cached. It reports whether the barrel was stored.
func FillBarrel(ctx context.Context, token string, b *models.Barrel) bool {
	if client == nil || token == "" {
		return false
	}
	data, err := json.Marshal(b)
	if err != nil {
		return false
	}
	leaseKey := fmt.Sprintf(BarrelLeaseKeyFmt, b.Code)
	err = client.Watch(ctx, func(tx *redis.Tx) error {
		held, err := tx.Get(ctx, leaseKey).Result()
		if err != nil || held != token {
			return errLeaseLost
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fmt.Sprintf(BarrelCodeKeyFmt, b.Code), data, ttl)
			pipe.Del(ctx, leaseKey)
			return nil
		})
		return err
	}, leaseKey)
	return err == nil
}

// InvalidateBarrel drops the cached barrel and any outstanding fill lease.
func InvalidateBarrel(ctx context.Context, code string) {
	if client == nil {
		return
	}
	client.Del(ctx, fmt.Sprintf(BarrelCodeKeyFmt, code), fmt.Sprintf(BarrelLeaseKeyFmt, code))
}

// ============================================
// Notification Counter Functions
// ============================================

// GetUnreadCount returns the cached unread count for a user in a role.
func GetUnreadCount(ctx context.Context, userID, role string) (int, bool) {
	if client == nil {
		return 0, false
	}
	v, err := client.Get(ctx, fmt.Sprintf(UnreadCountKeyFmt, userID, role)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CacheUnreadCount stores an unread count.
func CacheUnreadCount(ctx context.Context, userID, role string, n int) {
	if client == nil {
		return
	}
	client.Set(ctx, fmt.Sprintf(UnreadCountKeyFmt, userID, role), n, ttl)
}

// InvalidateUnread drops counters affected by a notification for target.
// Role-targeted notifications touch every cached user in that role.
func InvalidateUnread(ctx context.Context, target models.Target) {
	if client == nil {
		return
	}
	if target.RecipientRole != "" {
		InvalidatePattern(ctx, fmt.Sprintf(UnreadRolePattern, target.RecipientRole))
		return
	}
	InvalidatePattern(ctx, fmt.Sprintf(UnreadCountKeyFmt, target.RecipientID, "*"))
}

// ============================================
// Cache Invalidation Functions
// ============================================

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
