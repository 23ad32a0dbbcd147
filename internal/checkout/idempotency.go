package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRequestInProgress: a start with the same key is still running.
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	// ErrIdempotencyKeyReused: the key was first used for a different seat set.
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")
)

// processingTTL bounds how long a crashed start blocks its key.
const processingTTL = 60 * time.Second

// IdempotencyStore remembers checkout starts by client key.
//
// Begin claims key for a request with the given fingerprint.  It returns
// the stored Checkout when an identical request already completed, nil
// when the caller now owns the key, ErrRequestInProgress while another
// caller owns it and ErrIdempotencyKeyReused when the fingerprint differs.
// The owner ends the claim with Complete or Abort.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, fingerprint string) (*Checkout, error)
	Complete(ctx context.Context, key string, co Checkout, ttl time.Duration) error
	Abort(ctx context.Context, key string) error
}

type idemStatus string

const (
	idemProcessing idemStatus = "processing"
	idemCompleted  idemStatus = "completed"
)

type idemRecord struct {
	Status      idemStatus `json:"status"`
	Fingerprint string     `json:"fingerprint"`
	Checkout    *Checkout  `json:"checkout,omitempty"`
}

func (r idemRecord) resolve(fingerprint string) (*Checkout, error) {
	if r.Fingerprint != fingerprint {
		return nil, ErrIdempotencyKeyReused
	}
	if r.Status == idemCompleted && r.Checkout != nil {
		co := *r.Checkout
		return &co, nil
	}
	return nil, ErrRequestInProgress
}

// RedisIdempotency keeps records in Redis: SETNX a processing record,
// then overwrite it with the completed Checkout.
type RedisIdempotency struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisIdempotency stores keys under prefix (default "idem").
func NewRedisIdempotency(rdb redis.UniversalClient, prefix string) *RedisIdempotency {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisIdempotency{rdb: rdb, prefix: prefix}
}

func (r *RedisIdempotency) key(k string) string { return r.prefix + ":" + k }

func (r *RedisIdempotency) Begin(ctx context.Context, key, fingerprint string) (*Checkout, error) {
	claim, err := json.Marshal(idemRecord{Status: idemProcessing, Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}
	// A record can vanish between SETNX and GET (abort or expiry); retry once.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.rdb.SetNX(ctx, r.key(key), claim, processingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("idempotency claim: %w", err)
		}
		if ok {
			return nil, nil
		}
		raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("idempotency read: %w", err)
		}
		var rec idemRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("idempotency decode: %w", err)
		}
		return rec.resolve(fingerprint)
	}
	return nil, ErrRequestInProgress
}

func (r *RedisIdempotency) Complete(ctx context.Context, key string, co Checkout, ttl time.Duration) error {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return fmt.Errorf("idempotency read: %w", err)
	}
	var rec idemRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("idempotency decode: %w", err)
	}
	rec.Status = idemCompleted
	rec.Checkout = &co
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(key), body, ttl).Err()
}

func (r *RedisIdempotency) Abort(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

// MemoryIdempotency is the single-process fallback used when Redis is
// not configured.
type MemoryIdempotency struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]memoryIdemEntry
}

type memoryIdemEntry struct {
	rec     idemRecord
	expires time.Time
}

// NewMemoryIdempotency returns an empty store; now may be nil.
func NewMemoryIdempotency(now func() time.Time) *MemoryIdempotency {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotency{now: now, records: make(map[string]memoryIdemEntry)}
}

func (m *MemoryIdempotency) Begin(_ context.Context, key, fingerprint string) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.records[key]; ok && now.Before(e.expires) {
		return e.rec.resolve(fingerprint)
	}
	m.records[key] = memoryIdemEntry{
		rec:     idemRecord{Status: idemProcessing, Fingerprint: fingerprint},
		expires: now.Add(processingTTL),
	}
	return nil, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, co Checkout, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[key]
	if !ok {
		return fmt.Errorf("idempotency key %q not claimed", key)
	}
	e.rec.Status = idemCompleted
	e.rec.Checkout = &co
	e.expires = m.now().Add(ttl)
	m.records[key] = e
	m.gc()
	return nil
}

func (m *MemoryIdempotency) Abort(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// gc drops expired entries; callers hold mu.
func (m *MemoryIdempotency) gc() {
	now := m.now()
	for k, e := range m.records {
		if !now.Before(e.expires) {
			delete(m.records, k)
		}
	}
}
