package server

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Stores holds the repositories for the configured driver and the
// connections behind them.
type Stores struct {
	Driver   string
	Users    repository.UserRepository
	Products repository.ProductRepository

	DB    *database.Service
	Mongo *mongo.Client
}

// OpenStores connects the driver named by cfg.Store.Driver. Postgres schemas
// are migrated only when migrate is set.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case "postgres", "":
		db, err := database.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.RunMigrations(db.DB(), logger); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return &Stores{
			Driver:   "postgres",
			Users:    repository.NewUserRepository(db.DB()),
			Products: repository.NewProductRepository(db.DB()),
			DB:       db,
		}, nil

	case "mongo":
		// ConnectMongo also ensures the indexes
		client, mdb, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:   "mongo",
			Users:    repository.NewMongoUserRepository(mdb),
			Products: repository.NewMongoProductRepository(mdb),
			Mongo:    client,
		}, nil

	case "memory":
		logger.Warn("Using the in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &Stores{Driver: "memory", Users: mem.Users(), Products: mem.Products()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Health reports the state of the backing store
func (s *Stores) Health(ctx context.Context) map[string]string {
	switch {
	case s.DB != nil:
		return s.DB.Health(ctx)
	case s.Mongo != nil:
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := s.Mongo.Ping(ctx, nil); err != nil {
			return map[string]string{"status": "down", "error": err.Error()}
		}
	}
	return map[string]string{"status": "up"}
}

// Close releases the underlying connections
func (s *Stores) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	if s.Mongo != nil {
		return s.Mongo.Disconnect(ctx)
	}
	return nil
}
