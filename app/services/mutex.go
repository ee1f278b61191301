package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/redis/go-redis/v9"
)

// Mutex serializes content transformation across sending workers. Acquire
// blocks up to timeout and reports whether the lock was obtained; callers
// that fail to acquire fall back instead of erroring.
type Mutex interface {
	Acquire(ctx context.Context, name string, timeout time.Duration) bool
	Release(ctx context.Context, name string)
}

// releaseScript deletes the lock only when the caller still holds it, so a
// worker whose lock expired cannot release a lock re-acquired by another.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisMutex implements Mutex with SET NX PX and a per-holder random token
type RedisMutex struct {
	rc      *redis.Client
	prefix  string
	lockTTL time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisMutex creates a distributed mutex. lockTTL bounds how long a
// crashed holder can wedge other workers.
func NewRedisMutex(rc *redis.Client, prefix string, lockTTL time.Duration) *RedisMutex {
	if lockTTL <= 0 {
		lockTTL = utils.TrackingMutexTTL
	}
	return &RedisMutex{
		rc:      rc,
		prefix:  prefix,
		lockTTL: lockTTL,
		tokens:  make(map[string]string),
	}
}

func (m *RedisMutex) key(name string) string {
	return m.prefix + "lock:" + name
}

func (m *RedisMutex) Acquire(ctx context.Context, name string, timeout time.Duration) bool {
	token, err := randomToken()
	if err != nil {
		return false
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := m.rc.SetNX(ctx, m.key(name), token, m.lockTTL).Result()
		if err == nil && ok {
			m.mu.Lock()
			m.tokens[name] = token
			m.mu.Unlock()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (m *RedisMutex) Release(ctx context.Context, name string) {
	m.mu.Lock()
	token, ok := m.tokens[name]
	delete(m.tokens, name)
	m.mu.Unlock()
	if !ok {
		return
	}
	_ = m.rc.Eval(ctx, releaseScript, []string{m.key(name)}, token).Err()
}

func randomToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// LocalMutex implements Mutex with an in-process lock table. Used for
// single-node deployments and tests.
type LocalMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalMutex creates an in-process named mutex
func NewLocalMutex() *LocalMutex {
	return &LocalMutex{locks: make(map[string]chan struct{})}
}

func (m *LocalMutex) slot(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[name] = ch
	}
	return ch
}

func (m *LocalMutex) Acquire(ctx context.Context, name string, timeout time.Duration) bool {
	select {
	case m.slot(name) <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(timeout):
		return false
	}
}

func (m *LocalMutex) Release(_ context.Context, name string) {
	select {
	case <-m.slot(name):
	default:
	}
}
