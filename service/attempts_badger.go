package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "sign_attempts:"

// BadgerLimiter persists attempt counters in Badger so they survive restarts.
// Each counter is stored with a TTL equal to the rest of its window.
type BadgerLimiter struct {
	db     *badger.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

// OpenBadgerLimiter opens a Badger database at path. An empty path keeps it in memory.
func OpenBadgerLimiter(path string, limit int, window time.Duration) (*BadgerLimiter, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerLimiter{db: db, limit: limit, window: window, now: time.Now}, nil
}

func (l *BadgerLimiter) Hit(ctx context.Context, key string) (bool, time.Duration, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, 0, err
		}
		allowed, retry, err := l.hit([]byte(badgerKeyPrefix + key))
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return allowed, retry, err
	}
}

func (l *BadgerLimiter) hit(key []byte) (bool, time.Duration, error) {
	now := l.now()
	var count uint64
	resetAt := now.Add(l.window)

	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			err = item.Value(func(val []byte) error {
				if len(val) != 16 {
					return nil
				}
				stored := time.Unix(0, int64(binary.BigEndian.Uint64(val[8:])))
				if now.Before(stored) {
					count = binary.BigEndian.Uint64(val[:8])
					resetAt = stored
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		count++
		val := make([]byte, 16)
		binary.BigEndian.PutUint64(val[:8], count)
		binary.BigEndian.PutUint64(val[8:], uint64(resetAt.UnixNano()))
		return txn.SetEntry(badger.NewEntry(key, val).WithTTL(resetAt.Sub(now)))
	})
	if err != nil {
		return false, 0, err
	}
	return count <= uint64(l.limit), resetAt.Sub(now), nil
}

func (l *BadgerLimiter) Close() error { return l.db.Close() }
