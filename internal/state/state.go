// Package state provides the engine's persistent key-value state on Redis,
// with staged transactions: every mutation a redemption makes is buffered
// in memory and flushed in a single pipeline on commit. A transaction that
// is never committed leaves Redis untouched, which is what makes a failed
// redemption side-effect free.
package state

import (
	"context"
	"errors"
	"math/big"

	"github.com/redis/go-redis/v9"
)

// Store wraps the Redis client owning the engine's state. Multiple engine
// instances with distinct stores never interfere.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Get reads a committed value. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// GetBig reads a committed big.Int value; absent keys read as zero.
func (s *Store) GetBig(ctx context.Context, key string) (*big.Int, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return parseBig(val)
}

// Begin opens a staged transaction against the store.
func (s *Store) Begin() *Txn {
	return &Txn{store: s, writes: make(map[string]string)}
}

// Txn buffers writes over the store. Reads see staged writes first, then
// Redis. Commit flushes everything in one pipeline; an abandoned Txn is a
// no-op.
type Txn struct {
	store     *Store
	writes    map[string]string
	order     []string // commit in write order, last write per key wins
	committed bool
}

func (t *Txn) Get(ctx context.Context, key string) (string, bool, error) {
	if val, ok := t.writes[key]; ok {
		return val, true, nil
	}
	return t.store.Get(ctx, key)
}

func (t *Txn) Set(key, val string) {
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.writes[key] = val
}

func (t *Txn) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := t.Get(ctx, key)
	return ok, err
}

func (t *Txn) GetBig(ctx context.Context, key string) (*big.Int, error) {
	val, ok, err := t.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return parseBig(val)
}

func (t *Txn) SetBig(key string, v *big.Int) {
	t.Set(key, v.String())
}

// Commit flushes all staged writes in a single Redis transaction pipeline.
// A Txn commits at most once.
func (t *Txn) Commit(ctx context.Context) error {
	if t.committed {
		return errors.New("state: transaction already committed")
	}
	t.committed = true
	if len(t.order) == 0 {
		return nil
	}
	pipe := t.store.rdb.TxPipeline()
	for _, key := range t.order {
		pipe.Set(ctx, key, t.writes[key], 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func parseBig(val string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return nil, errors.New("state: corrupt numeric value: " + val)
	}
	return n, nil
}
