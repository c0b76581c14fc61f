package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/core/ports"
	badgerdb "github.com/rafflenet/raffled/internal/infrastructure/db/badger"
	pgdb "github.com/rafflenet/raffled/internal/infrastructure/db/postgres"
	sqlitedb "github.com/rafflenet/raffled/internal/infrastructure/db/sqlite"
	watermilldb "github.com/rafflenet/raffled/internal/infrastructure/db/watermill"
)

//go:embed sqlite/migration/*.sql
var migrations embed.FS

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.RoundEventRepository, error){
		"badger": badgerdb.NewRoundEventRepository,
	}
	roundStoreTypes = map[string]func(...interface{}) (domain.RoundRepository, error){
		"badger": badgerdb.NewRoundRepository,
		"sqlite": sqlitedb.NewRoundRepository,
	}
	eventBusTypes = map[string]func(...interface{}) (domain.EventRepository, error){
		"inmemory": newInMemoryEventBus,
		"postgres": pgdb.NewEventRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string
	EventBusType   string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
	EventBusConfig   []interface{}
}

type service struct {
	eventStore domain.RoundEventRepository
	roundStore domain.RoundRepository
	eventBus   domain.EventRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	roundStoreFactory, ok := roundStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	if config.DataStoreType == "sqlite" {
		db, err := openAndMigrateSqliteDb(config.DataStoreConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite db: %w", err)
		}
		config.DataStoreConfig = []interface{}{db}
	}

	roundStore, err := roundStoreFactory(config.DataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create round store: %w", err)
	}

	eventBusFactory, ok := eventBusTypes[config.EventBusType]
	if !ok {
		return nil, fmt.Errorf("invalid event bus type: %s", config.EventBusType)
	}

	if config.EventBusType == "postgres" {
		db, err := openPostgresDb(config.EventBusConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %w", err)
		}
		config.EventBusConfig = []interface{}{db}
	}

	eventBus, err := eventBusFactory(config.EventBusConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return &service{
		eventStore: eventStore,
		roundStore: roundStore,
		eventBus:   eventBus,
	}, nil
}

func (s *service) Events() domain.RoundEventRepository {
	return s.eventStore
}

func (s *service) Rounds() domain.RoundRepository {
	return s.roundStore
}

func (s *service) EventBus() domain.EventRepository {
	return s.eventBus
}

func (s *service) Close() {
	s.eventBus.Close()
	s.eventStore.Close()
	s.roundStore.Close()
}

func newInMemoryEventBus(config ...interface{}) (domain.EventRepository, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{}, watermill.NewStdLogger(false, false),
	)
	return watermilldb.NewWatermillEventRepository(pubsub), nil
}

func openPostgresDb(config []interface{}) (*sql.DB, error) {
	if len(config) != 1 {
		return nil, errors.New("invalid config")
	}

	dsn, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid dsn")
	}

	return pgdb.OpenDb(dsn)
}

func openAndMigrateSqliteDb(config []interface{}) (*sql.DB, error) {
	if len(config) != 1 {
		return nil, errors.New("invalid config")
	}

	baseDir, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid base directory")
	}

	db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, err
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrations, "sqlite/migration")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to migrate up: %w", err)
	}

	return db, nil
}
