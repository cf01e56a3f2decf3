package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/tidwall/match"
)

// Value kinds stored in the badger UserMeta byte.
const (
	metaString byte = 0
	metaHash   byte = 1
)

// maxTxnRetries bounds retries on optimistic transaction conflicts.
const maxTxnRetries = 16

// Badger is an embedded Store for single-instance deployments.
// Hashes are stored as JSON objects of string fields.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a badger database in dir. An empty dir runs in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		if item.UserMeta() != metaString {
			return ErrWrongType
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Badger) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithMeta(metaString)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *Badger) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := b.update(ctx, func(txn *badger.Txn) error {
		n = 0
		var expiresAt uint64

		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if item.UserMeta() != metaString {
				return ErrWrongType
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err = strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return ErrNotInteger
			}
			expiresAt = item.ExpiresAt()
		}

		n++
		e := badger.NewEntry([]byte(key), []byte(strconv.FormatInt(n, 10))).WithMeta(metaString)
		e.ExpiresAt = expiresAt
		return txn.SetEntry(e)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Expire on a missing key is a no-op and a non-positive ttl deletes the
// key, both matching Redis.
func (b *Badger) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		if ttl <= 0 {
			return txn.Delete([]byte(key))
		}
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(key), val).WithMeta(item.UserMeta()).WithTTL(ttl))
	})
}

func (b *Badger) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var n int64
	err := b.update(ctx, func(txn *badger.Txn) error {
		fields, expiresAt, err := readHash(txn, key)
		if err != nil {
			return err
		}

		n = 0
		if cur, ok := fields[field]; ok {
			n, err = strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return ErrNotInteger
			}
		}
		n += delta
		fields[field] = strconv.FormatInt(n, 10)

		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal hash: %w", err)
		}
		e := badger.NewEntry([]byte(key), data).WithMeta(metaHash)
		e.ExpiresAt = expiresAt
		return txn.SetEntry(e)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Badger) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fields map[string]string
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		fields, _, err = readHash(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// Keys seeks to the literal prefix of the pattern and filters with Redis
// glob rules, where * also matches '/'.
func (b *Badger) Keys(ctx context.Context, pattern string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(literalPrefix(pattern))
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			if !match.Match(k, pattern) {
				continue
			}
			out = append(out, k)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// RunGC reclaims value log space. Intended for a periodic ticker on
// on-disk databases; in-memory databases return badger.ErrGCInMemoryMode.
func (b *Badger) RunGC() error {
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func (b *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxTxnRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger: update of contended key gave up after %d attempts", maxTxnRetries)
}

func readHash(txn *badger.Txn, key string) (map[string]string, uint64, error) {
	fields := make(map[string]string)

	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fields, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if item.UserMeta() != metaHash {
		return nil, 0, ErrWrongType
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &fields)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("decode hash %s: %w", key, err)
	}
	return fields, item.ExpiresAt(), nil
}

func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
