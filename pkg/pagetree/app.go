package pagetree

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/surrealdb/pagetree/pkg/events"
	"github.com/surrealdb/pagetree/pkg/logger"
	"github.com/surrealdb/pagetree/pkg/store"
	"github.com/surrealdb/pagetree/pkg/store/memory"
	"github.com/surrealdb/pagetree/pkg/store/mongo"
	"github.com/surrealdb/pagetree/pkg/store/postgres"
	"github.com/surrealdb/pagetree/pkg/store/surrealdb"
	"github.com/surrealdb/pagetree/pkg/tree"
)

// Config holds application configuration.
type Config struct {
	// Store selects the backend: memory, surrealdb, postgres or mongo.
	Store string

	PostgresDSN   string
	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string
	MongoURI      string
	MongoDB       string

	// ParkedFile is a TOML declarations file. Empty means home and trash only.
	ParkedFile string
	ReadOnly   bool // When true, all write operations are rejected
	BatchSize  int

	LogLevel string
	LogFile  string

	ServerPort string
}

// App holds the application state.
type App struct {
	config   *Config
	store    *store.ReadOnlyStore
	tree     *tree.Tree
	hub      *events.Hub
	logData  *logger.LogData
	log      zerolog.Logger
	readOnly atomic.Bool
}

// New creates the logger, connects to the configured store and builds the
// page tree on top of it.
func New(ctx context.Context, config *Config) (*App, error) {
	logData, err := logger.New().FromPath(config.LogFile).Level(config.LogLevel).Make()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	backend, err := openStore(ctx, config)
	if err != nil {
		_ = logData.Close()
		return nil, err
	}
	logData.Logger.Info().Str("store", config.Store).Msg("connected to page store")

	return newApp(config, backend, logData), nil
}

// NewWithStore builds an App around an already opened store. The App takes
// ownership of backend and closes it in Close.
func NewWithStore(config *Config, backend store.PageStore, log zerolog.Logger) *App {
	return newApp(config, backend, &logger.LogData{Logger: log})
}

func newApp(config *Config, backend store.PageStore, logData *logger.LogData) *App {
	app := &App{
		config:  config,
		logData: logData,
		log:     logData.Logger,
	}
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(backend, app.IsReadOnly)
	app.hub = events.NewHub(events.WithLogger(app.log.With().Str("component", "events").Logger()))

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = tree.DefaultBatchSize
	}
	app.tree = tree.New(app.store,
		tree.WithPermissions(tree.AuthenticatedPolicy{}),
		tree.WithNotifier(tree.Notifiers{tree.LogNotifier{Logger: app.log}, app.hub}),
		tree.WithLogger(app.log.With().Str("component", "tree").Logger()),
		tree.WithBatchSize(batchSize),
		tree.WithLocker(tree.NewMutexLocker()),
	)
	return app
}

func openStore(ctx context.Context, config *Config) (store.PageStore, error) {
	switch config.Store {
	case StoreMemory, "":
		return memory.New(), nil
	case StoreSurrealDB:
		s, err := surrealdb.New(ctx, surrealdb.Config{
			URL:       config.SurrealDBURL,
			Namespace: config.SurrealDBNS,
			Database:  config.SurrealDBDB,
			Username:  config.SurrealDBUser,
			Password:  config.SurrealDBPass,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		return s, nil
	case StorePostgres:
		s, err := postgres.New(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return s, nil
	case StoreMongo:
		s, err := mongo.New(ctx, mongo.Config{URI: config.MongoURI, Database: config.MongoDB})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store: %s", config.Store)
}

// Tree returns the page tree the application serves.
func (a *App) Tree() *tree.Tree {
	return a.tree
}

// SetReadOnly toggles read-only mode at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports whether writes are currently rejected.
func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// Close disconnects event subscribers and closes the store and log file.
func (a *App) Close() error {
	_ = a.hub.Close()
	err := a.store.Unwrap().Close()
	if cerr := a.logData.Close(); err == nil {
		err = cerr
	}
	return err
}

// Park enforces the configured parked declarations.
func (a *App) Park(ctx context.Context, _ *ParkCommand) error {
	decls, err := LoadParked(a.config.ParkedFile)
	if err != nil {
		return err
	}
	if err := a.tree.Park(ctx, decls); err != nil {
		return fmt.Errorf("failed to enforce parked pages: %w", err)
	}
	a.log.Info().Int("declarations", len(decls)).Msg("parked pages enforced")
	return nil
}

// Migrate creates the schema of the configured store.
func (a *App) Migrate(ctx context.Context, _ *MigrateCommand) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	a.log.Info().Str("store", a.config.Store).Msg("migration completed")
	return nil
}

// Check logs every violation found in the stored tree and fails when there
// is at least one.
func (a *App) Check(ctx context.Context, _ *CheckCommand) error {
	violations, err := a.tree.Verify(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	for _, v := range violations {
		a.log.Warn().Str("id", v.ID.String()).Str("path", v.Path).Msg(v.Problem)
	}
	if len(violations) > 0 {
		return fmt.Errorf("found %d tree violations", len(violations))
	}
	a.log.Info().Msg("tree is consistent")
	return nil
}
