// Package app wires the application together: storage, broker, provider
// sessions and the services on top of them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bookwell/outlooksync/adapter/api"
	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	bookingPersistence "github.com/bookwell/outlooksync/internal/booking/infrastructure/persistence"
	"github.com/bookwell/outlooksync/internal/booking/infrastructure/templates"
	outlookApp "github.com/bookwell/outlooksync/internal/outlook/application"
	"github.com/bookwell/outlooksync/internal/outlook/infrastructure/graph"
	"github.com/bookwell/outlooksync/internal/shared/infrastructure/database"
	"github.com/bookwell/outlooksync/internal/shared/infrastructure/eventbus"
	"github.com/bookwell/outlooksync/internal/shared/infrastructure/migrations"
	"github.com/bookwell/outlooksync/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage
	PgxPool  *pgxpool.Pool
	SQLiteDB *sql.DB

	// Repositories
	Appointments bookingDomain.AppointmentRepository
	Resources    bookingDomain.ResourceRepository
	Settings     bookingDomain.SettingsRepository
	Availability bookingDomain.AvailabilityRecalculator

	// Messaging
	Publisher eventbus.Publisher

	// Synchronization services
	Sessions      *graph.Pool
	Processor     *outlookApp.Processor
	Outbound      *outlookApp.OutboundSync
	Subscriptions *outlookApp.SubscriptionManager

	// HTTP
	WebhookServer *api.Server
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.closeStorage()
		return nil, err
	}

	c.Sessions = graph.NewPool(cfg.GraphBaseURL, logger)

	renderer := templates.NewRenderer(templates.NewSettingsStore(c.Settings))

	c.Processor = outlookApp.NewProcessor(
		c.Resources, c.Appointments, c.Settings,
		c.Sessions, c.Availability, c.Publisher, logger,
	)
	c.Outbound = outlookApp.NewOutboundSync(
		c.Resources, c.Appointments, c.Settings,
		c.Sessions, renderer, c.Publisher, logger,
	)
	c.Subscriptions = outlookApp.NewSubscriptionManager(
		c.Resources, c.Settings, c.Sessions,
		c.Publisher, cfg.ClientStateSecret, logger,
	)

	handler := api.NewWebhookHandler(c.Processor, c.Subscriptions, c.Resources, cfg.ClientStateSecret, logger)
	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.WebhookAddr
	c.WebhookServer = api.NewServer(serverCfg, handler, logger)

	return c, nil
}

// initStorage opens the configured database, runs migrations and builds
// the repositories. An empty DATABASE_URL falls back to a local SQLite
// file.
func (c *Container) initStorage(ctx context.Context) error {
	driver := database.DetectDriver(c.Config.DatabaseURL)

	switch driver {
	case database.DriverPostgres:
		pool, err := pgxpool.New(ctx, c.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return err
		}

		c.PgxPool = pool
		c.Appointments = bookingPersistence.NewPostgresAppointmentRepository(pool)
		c.Resources = bookingPersistence.NewPostgresResourceRepository(pool)
		c.Settings = bookingPersistence.NewPostgresSettingsRepository(pool)
		c.Availability = bookingPersistence.NewPostgresAvailabilityRecalculator(pool)
		c.Logger.Info("connected to database", "driver", driver)
		return nil

	case database.DriverSQLite:
		path := database.SQLitePath(c.Config.DatabaseURL)
		if path == "" {
			path = "outlooksync.db"
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			_ = db.Close()
			return err
		}

		c.SQLiteDB = db
		c.Appointments = bookingPersistence.NewSQLiteAppointmentRepository(db)
		c.Resources = bookingPersistence.NewSQLiteResourceRepository(db)
		c.Settings = bookingPersistence.NewSQLiteSettingsRepository(db)
		c.Availability = bookingPersistence.NewSQLiteAvailabilityRecalculator(db)
		c.Logger.Info("connected to database", "driver", driver, "path", path)
		return nil

	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// initPublisher connects to RabbitMQ. Development setups without a
// broker fall back to the noop publisher.
func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL == "" {
		c.Logger.Info("no broker configured, using noop publisher")
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if c.Config.IsDevelopment() {
			c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.Publisher = eventbus.NewNoopPublisher(c.Logger)
			return nil
		}
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c.Publisher = publisher
	return nil
}

func (c *Container) closeStorage() {
	if c.PgxPool != nil {
		c.PgxPool.Close()
	}
	if c.SQLiteDB != nil {
		_ = c.SQLiteDB.Close()
	}
}

// Close releases all held connections.
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("error closing publisher", "error", err)
		}
	}
	c.closeStorage()
}
