// Package storage is the key-value persistence behind the state services.
// Values are opaque blobs; services serialize whole collections per key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/metrics"
	"tradesxbt/logger"
)

// ErrNotFound is returned by Get when the key was never written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// Keys shared by the services.
const (
	KeyPortfolioAssets       = "portfolioAssets"
	KeyPortfolioTransactions = "portfolioTransactions"
	KeyUserAlerts            = "userAlerts"
	KeyUserNotifications     = "userNotifications"
	KeyChatThreads           = "chatThreads"
	KeySearchHistory         = "solana-search-history"
	KeyTheme                 = "theme"
	KeyColorScheme           = "colorScheme"
	KeyRememberedEmail       = "rememberedEmail"
	KeyConnectedAddress      = "connectedAddress"
	KeyPortfolioBlockchain   = "portfolioBlockchain"
	KeyIsRealData            = "isRealData"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New opens the backend selected in cfg and wraps it with logging and metrics.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Log) (Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", "memory":
		s = NewMemory()
	case "sqlite":
		s, err = NewSQLite(ctx, cfg.SQLite.Path)
	case "redis":
		s, err = NewRedis(ctx, cfg.Redis)
	case "s3":
		s, err = NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend '%s'", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}
	log.WithComponent("storage").WithField("backend", backend).Info("storage opened")
	return Instrument(s, backend, cfg.Timeout, log), nil
}

type instrumented struct {
	next    Store
	backend string
	timeout time.Duration
	log     *logger.Log
}

// Instrument applies a per-operation timeout and records each operation's
// outcome. A missing key is not a failure.
func Instrument(s Store, backend string, timeout time.Duration, log *logger.Log) Store {
	return &instrumented{next: s, backend: backend, timeout: timeout, log: log}
}

func (s *instrumented) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *instrumented) observe(op, key string, err error) {
	ok := err == nil || errors.Is(err, ErrNotFound)
	metrics.ObserveStorage(s.backend, op, ok)
	if !ok {
		s.log.WithComponent("storage").WithError(err).WithFields(logger.Fields{
			"backend":   s.backend,
			"operation": op,
			"key":       key,
		}).Warn("storage operation failed")
	}
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	v, err := s.next.Get(ctx, key)
	s.observe("get", key, err)
	return v, err
}

func (s *instrumented) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.next.Set(ctx, key, value)
	s.observe("set", key, err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.next.Delete(ctx, key)
	s.observe("delete", key, err)
	return err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
