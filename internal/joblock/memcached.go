package joblock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedLocker implements Locker on memcached Add, which only succeeds
// when the key does not exist. The TTL is enforced server-side, so a
// crashed holder frees the lock without intervention.
type MemcachedLocker struct {
	client *memcache.Client
}

// NewMemcachedLocker creates a MemcachedLocker. addrs is a comma-separated
// server list; timeout and maxIdleConns use package defaults if zero.
func NewMemcachedLocker(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedLocker, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedLocker{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Ping checks server reachability, for health checks.
func (l *MemcachedLocker) Ping() error { return l.client.Ping() }

// Close releases idle connections.
func (l *MemcachedLocker) Close() error { return l.client.Close() }

// Acquire takes the (offset, kind) lock via Add-with-TTL.
func (l *MemcachedLocker) Acquire(ctx context.Context, offset int, kind string, ttl time.Duration) (func(), bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	key := lockKey(offset, kind)
	err := l.client.Add(&memcache.Item{
		Key:        key,
		Value:      []byte{1},
		Expiration: int32(ttl / time.Second),
	})
	if errors.Is(err, memcache.ErrNotStored) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	release := func() { _ = l.client.Delete(key) }
	return release, true, nil
}
