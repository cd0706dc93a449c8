package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/firestore"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/postgres"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/redis"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/repository"
	"github.com/sagenius/agency-crm/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE STACK
// ══════════════════════════════════════════════════════════════════════════════

// Stores is the persistence stack: one collection store behind three
// repositories, the tenant locker and the due-soon mark set.
type Stores struct {
	Collection collection.Store
	Locker     *collection.Locker
	Notified   task.NotifiedSet

	Students *repository.StudentRepository
	Tasks    *repository.TaskRepository
	Agency   *repository.AgencyRepository

	// Health checks every backing service that can be pinged.
	Health *handlers.HealthRegistry

	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Stores) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// OpenStores connects the configured backend, applies migrations when asked,
// and wraps the store in the Redis cache when enabled. A Redis connection
// failure downgrades to the uncached store with in-process marks.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	s := &Stores{Health: handlers.NewHealthRegistry(cfg.App.Version)}

	var store collection.Store
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pg, err := openPostgres(ctx, cfg, log, s)
		if err != nil {
			s.Close()
			return nil, err
		}
		store = pg

	case config.StorageFirestore:
		log.Info("connecting to firestore", "project", cfg.Firestore.ProjectID)
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect firestore: %w", err)
		}
		fs := firestore.NewStore(client)
		s.Health.Register("firestore", handlers.PingProbe(fs), handlers.Critical)
		s.onClose(func() {
			if err := fs.Close(); err != nil {
				log.Warn("firestore close failed", "error", err)
			}
		})
		store = fs

	default:
		log.Warn("using in-memory store, data is lost on restart")
		store = collection.NewMemoryStore()
	}

	s.Notified = collection.NewMemoryNotifiedSet(cfg.Redis.NotifiedTTL)

	if cfg.Redis.Enabled {
		cache, err := openRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", "addr", cfg.Redis.Addr(), "error", err)
		} else {
			s.onClose(func() { _ = cache.Close() })
			s.Health.Register("redis", handlers.PingProbe(cache), handlers.Optional)
			store = redis.NewCachedStore(store, cache, cfg.Redis.CacheTTL, log)
			s.Notified = redis.NewNotifiedSet(cache, cfg.Redis.NotifiedTTL)
		}
	}

	s.Collection = store
	s.Locker = collection.NewLocker()
	s.Students = repository.NewStudentRepository(store)
	s.Tasks = repository.NewTaskRepository(store)
	s.Agency = repository.NewAgencyRepository(store)

	return s, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger, s *Stores) (*postgres.CollectionStore, error) {
	pgCfg := postgres.DefaultOptions()
	pgCfg.URL = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	if cfg.Database.ConnectTimeout > 0 {
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	}

	log.Info("connecting to database...")
	db, err := postgres.Open(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s.onClose(func() {
		log.Info("closing database connection...")
		db.Close()
	})
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	store := postgres.NewCollectionStore(db)
	s.Health.Register("database", handlers.PingProbe(store), handlers.Critical)
	return store, nil
}

func openRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	rc := redis.DefaultOptions()
	rc.Addr = cfg.Redis.Addr()
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.Namespace = cfg.Redis.Namespace
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}

	log.Info("connecting to Redis...", "addr", rc.Addr)
	cache, err := redis.Connect(ctx, rc)
	if err != nil {
		return nil, err
	}
	log.Info("Redis connection established")
	return cache, nil
}
