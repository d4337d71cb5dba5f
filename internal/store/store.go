// Package store holds the persistence backends. MongoDB is the default;
// PostgreSQL and an in-process memory store implement the same Backend.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/skill-swap/internal/config"
	"github.com/ayush/skill-swap/internal/models"
)

// Backend is everything the services need from a persistence layer.
// Swap status changes and rating writes are conditional so that concurrent
// requests cannot overwrite each other.
type Backend interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListPublicUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	// SetBanned applies only when the flag currently holds the opposite
	// value and returns models.ErrPreconditionFailed otherwise.
	SetBanned(ctx context.Context, id string, banned bool) error
	SetProfilePhoto(ctx context.Context, id, url string) error
	SetRole(ctx context.Context, id string, role models.Role) error
	ReplaceRatings(ctx context.Context, id string, ratings []models.Rating, avg float64, expectedCount int) error
	DeleteUser(ctx context.Context, id string) error

	InsertSwap(ctx context.Context, s *models.Swap) error
	GetSwap(ctx context.Context, id string) (*models.Swap, error)
	ListSwapsByParticipant(ctx context.Context, userID string) ([]models.Swap, error)
	ListSwaps(ctx context.Context) ([]models.Swap, error)
	TransitionSwap(ctx context.Context, id string, from, to models.SwapStatus) error
	DeleteSwapIf(ctx context.Context, id string, status models.SwapStatus) error
	DeleteSwapsByParticipant(ctx context.Context, userID string) (int64, error)
}

var (
	_ Backend = (*MongoStore)(nil)
	_ Backend = (*PostgresStore)(nil)
	_ Backend = (*MemoryStore)(nil)
)

// Open connects the backend selected by cfg.StoreDriver. The returned close
// function releases the connection.
func Open(ctx context.Context, cfg *config.Config) (Backend, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		s := NewMongoStore(client.Database(cfg.MongoDB))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return s, client.Disconnect, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		s := NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return s, func(context.Context) error { pool.Close(); return nil }, nil

	case config.DriverMemory:
		return NewMemoryStore(), func(context.Context) error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
