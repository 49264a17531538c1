package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fatura/internal/amqp"
	"fatura/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLite(config)
	case PostgresBackend:
		return f.createPostgres(config)
	case MemoryBackend:
		return f.createMemory(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite store: %w", err)
	}

	events := f.connectAMQP(config)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", events != nil)

	return newResult(store, events), nil
}

func (f *DefaultFactory) createPostgres(config Config) (*Result, error) {
	store, err := storage.NewPostgresStore(config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres store: %w", err)
	}

	events := f.connectAMQP(config)

	f.logger.Info("Initialized Postgres backend", "amqp_enabled", events != nil)

	return newResult(store, events), nil
}

func (f *DefaultFactory) createMemory(config Config) (*Result, error) {
	store := storage.NewMemoryStore()

	events := f.connectAMQP(config)

	f.logger.Info("Initialized memory backend", "amqp_enabled", events != nil)

	return newResult(store, events), nil
}

// connectAMQP dials the broker when configured. A broker outage is not
// fatal, expenses stay durable and only downstream refreshes are skipped.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func newResult(store storage.Store, events *amqp.Client) *Result {
	cleanup := func() error {
		var errs []error
		if events != nil {
			if err := events.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("backend cleanup: %v", errs)
		}
		return nil
	}

	return &Result{Store: store, Events: events, Cleanup: cleanup}
}
