package rdx

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker serialises critical sections that share any of the given keys.
// Keys are always acquired in sorted order so overlapping key sets cannot
// deadlock.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RedisLocker holds "lock:<key>" entries with SET NX PX. The TTL bounds how
// long a crashed holder can block others.
type RedisLocker struct {
	Client  *redis.Client
	TTL     time.Duration
	Wait    time.Duration
	Backoff time.Duration
}

func NewRedisLocker(c *redis.Client) *RedisLocker {
	return &RedisLocker{Client: c, TTL: 10 * time.Second, Wait: 3 * time.Second, Backoff: 25 * time.Millisecond}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	var held []string
	release := func() {
		// detached so a cancelled request still frees its locks
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			releaseScript.Run(rctx, l.Client, []string{k}, token)
		}
	}

	for _, k := range keys {
		rk := "lock:" + k
		for {
			ok, err := l.Client.SetNX(ctx, rk, token, l.TTL).Result()
			if err != nil {
				release()
				return nil, err
			}
			if ok {
				held = append(held, rk)
				break
			}
			if time.Now().After(deadline) {
				release()
				return nil, ErrLockTimeout
			}
			select {
			case <-ctx.Done():
				release()
				return nil, ctx.Err()
			case <-time.After(l.Backoff):
			}
		}
	}
	return release, nil
}

// LocalLocker is an in-process Locker used when Redis is unavailable and in
// tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()
	return kl
}

func (l *LocalLocker) drop(key string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	type heldLock struct {
		key string
		kl  *keyLock
	}
	var held []heldLock
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i].kl.ch
			l.drop(held[i].key, held[i].kl)
		}
	}

	for _, k := range keys {
		kl := l.acquire(k)
		select {
		case kl.ch <- struct{}{}:
			held = append(held, heldLock{k, kl})
		case <-ctx.Done():
			l.drop(k, kl)
			release()
			return nil, ErrLockTimeout
		}
	}
	return release, nil
}
