// Package state holds the long-lived application services: market snapshot,
// portfolio, alerts, theme, social feeds, chat threads and preferences. Each
// service owns its data behind a mutex and writes whole collections to the
// key-value store after every mutation.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"tradesxbt/internal/storage"
	"tradesxbt/logger"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func nowMillis(c Clock) int64 {
	return c().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

// loadJSON reads key into a value of type T. An absent key, a read failure or
// an unparsable blob all yield fallback(); only the last two are logged. A
// stored empty collection decodes as empty and is kept.
func loadJSON[T any](ctx context.Context, store storage.Store, key string, log *logger.Entry, fallback func() T) T {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return fallback()
	}
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to read stored state, using defaults")
		return fallback()
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.WithError(err).WithField("key", key).Warn("discarding unparsable stored state")
		return fallback()
	}
	return v
}

// saveJSON writes v under key. Failures are logged; in-memory state stays
// authoritative.
func saveJSON(ctx context.Context, store storage.Store, key string, v interface{}, log *logger.Entry) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("failed to encode state")
		return
	}
	if err := store.Set(ctx, key, raw); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to persist state")
	}
}

// loadString reads a primitive string value stored without JSON encoding.
func loadString(ctx context.Context, store storage.Store, key string, log *logger.Entry) (string, bool) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to read stored value")
		return "", false
	}
	return string(raw), true
}

func saveString(ctx context.Context, store storage.Store, key, value string, log *logger.Entry) {
	if err := store.Set(ctx, key, []byte(value)); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to persist value")
	}
}

func deleteKey(ctx context.Context, store storage.Store, key string, log *logger.Entry) {
	if err := store.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to delete value")
	}
}
