// Package store provides Postgres persistence for conversations, messages,
// teams, assignments, and routing analyses.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/pkg/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle. All mutations are single-row inserts or
// upserts; correctness under concurrent webhook deliveries relies on the
// unique indexes declared on the models, not on application locks.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open connects to Postgres and runs migrations.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := &Store{db: db, logger: log}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle. Used by tests with the sqlite driver.
func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&model.Conversation{},
		&model.Message{},
		&model.Team{},
		&model.ConversationTeam{},
		&model.MessageAIAnalysis{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies database connectivity.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
