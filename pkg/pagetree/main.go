package pagetree

import (
	"context"
	"fmt"
)

// Main is the entry point of the pagetree application. It parses args,
// builds the App and runs the selected command. It can be called from tests
// without building the binary; cancelling ctx stops a running server.
//
// # Environment Variables
//
//	PAGETREE_STORE     - memory, surrealdb, postgres or mongo (default: memory)
//	PAGETREE_PORT      - HTTP port (default: 8080)
//	PAGETREE_PARKED    - parked declarations file (default: home and trash)
//	PAGETREE_LOG_LEVEL - zerolog level name (default: info)
//	PAGETREE_LOG_FILE  - log file (default: stdout)
//	POSTGRES_DSN       - PostgreSQL connection string
//	SURREALDB_URL      - SurrealDB WebSocket URL (default: ws://localhost:8000/rpc)
//	SURREALDB_NS       - SurrealDB namespace (default: pagetree)
//	SURREALDB_DB       - SurrealDB database (default: pagetree)
//	SURREALDB_USER     - SurrealDB username (default: root)
//	SURREALDB_PASS     - SurrealDB password (default: root)
//	MONGO_URI          - MongoDB connection string (default: mongodb://localhost:27017)
//	MONGO_DB           - MongoDB database (default: pagetree)
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		return app.Run(ctx, c)
	case *ParkCommand:
		return app.Park(ctx, c)
	case *MigrateCommand:
		return app.Migrate(ctx, c)
	case *CheckCommand:
		return app.Check(ctx, c)
	default:
		return fmt.Errorf("unknown command: %s", cmd.Name())
	}
}
