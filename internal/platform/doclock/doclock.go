package doclock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/httpx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

// ErrBusy is returned when the lock is still held after the wait budget.
var ErrBusy = errors.New("doclock: busy")

// Locker serialises work on a single document across ingest and delete.
type Locker interface {
	// Acquire blocks up to the configured wait and returns a release func
	// that is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Config struct {
	// TTL bounds how long a crashed holder keeps a Redis lock. A live holder
	// refreshes it every TTL/3 until release, so TTL does not cap the length
	// of the locked work.
	TTL  time.Duration
	Wait time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 2 * time.Minute
	}
	if c.Wait <= 0 {
		c.Wait = 5 * time.Second
	}
	return c
}

func record(err error) {
	switch {
	case err == nil:
		observability.Current().IncLock("acquired")
	case errors.Is(err, ErrBusy):
		observability.Current().IncLock("busy")
	default:
		observability.Current().IncLock("error")
	}
}

// ---- in-process ----

type localLocker struct {
	cfg   Config
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns a keyed mutex for single-instance deployments.
func NewLocal(cfg Config) Locker {
	return &localLocker{cfg: cfg.withDefaults(), slots: map[string]*slot{}}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.cfg.Wait)
	defer timer.Stop()
	var err error
	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		err = ErrBusy
	case <-ctx.Done():
		err = ctx.Err()
	}
	record(err)
	if err != nil {
		l.unref(key, s)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *localLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// ---- redis ----

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	cfg    Config
	prefix string
}

// NewRedis returns a lock shared by every instance using the same Redis.
func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisLocker{
		log:    log.With("service", "RedisDocLock"),
		rdb:    rdb,
		cfg:    cfg.withDefaults(),
		prefix: "sb:doclock:",
	}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + strings.TrimSpace(key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.cfg.Wait)
	backoff := 25 * time.Millisecond
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			record(err)
			return nil, fmt.Errorf("doclock redis setnx: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			record(ErrBusy)
			return nil, ErrBusy
		}
		if err := httpx.Sleep(ctx, httpx.JitterSleep(backoff)); err != nil {
			record(err)
			return nil, err
		}
		if backoff < 400*time.Millisecond {
			backoff *= 2
		}
	}
	record(nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Released on a fresh context so a cancelled request still frees the key.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("doclock release failed", "key", redisKey, "error", err)
			}
		})
	}, nil
}

// keepAlive pushes the key's expiry out while the holder works. It stops on
// stop or once the key is no longer ours.
func (l *redisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.TTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL/3)
		n, err := extendScript.Run(ctx, l.rdb, []string{redisKey}, token, l.cfg.TTL.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			l.log.Warn("doclock extend failed", "key", redisKey, "error", err)
		case n == 0:
			observability.Current().IncLock("lost")
			l.log.Error("doclock lost before release", "key", redisKey)
			return
		}
	}
}

// NewRedisClient dials addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
