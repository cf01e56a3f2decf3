package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("store unavailable")

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRedisStore starts an in-process miniredis and returns a store on it.
func NewRedisStore(t testing.TB) (*kv.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kv.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// FailingStore is a kv.Store whose every operation fails.
type FailingStore struct{}

func (FailingStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrStoreDown
}

func (FailingStore) Set(context.Context, string, []byte, time.Duration) error {
	return ErrStoreDown
}

func (FailingStore) Delete(context.Context, string) error {
	return ErrStoreDown
}

func (FailingStore) Incr(context.Context, string) (int64, error) {
	return 0, ErrStoreDown
}

func (FailingStore) Expire(context.Context, string, time.Duration) error {
	return ErrStoreDown
}

func (FailingStore) HIncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, ErrStoreDown
}

func (FailingStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, ErrStoreDown
}

func (FailingStore) Keys(context.Context, string, int) ([]string, error) {
	return nil, ErrStoreDown
}

func (FailingStore) Ping(context.Context) error {
	return ErrStoreDown
}

func (FailingStore) Close() error {
	return nil
}

// ResetArchiveSchema drops and recreates the click archive table.
func ResetArchiveSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", "000001_click_archive.down.sql"))
	if err != nil {
		return fmt.Errorf("read archive down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply archive down migration: %w", err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", "000001_click_archive.up.sql"))
	if err != nil {
		return fmt.Errorf("read archive up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply archive up migration: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestClick creates a click event with sensible defaults.
func NewTestClick(t testing.TB, partnerID string) model.ClickEvent {
	t.Helper()
	now := time.Now().UTC()
	return model.ClickEvent{
		ClickID:   UniqueClickID(),
		PartnerID: partnerID,
		Timestamp: now.UnixMilli(),
		Source:    []byte(`{"page":"/elpriser","component":"provider_card"}`),
	}
}

// UniqueClickID generates a unique dep_ click id for tests.
func UniqueClickID() string {
	return fmt.Sprintf("dep_%d", time.Now().UnixNano())
}
