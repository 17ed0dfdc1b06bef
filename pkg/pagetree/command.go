package pagetree

// Command represents one application operation with its own options.
//
// Commands are created by Parse and dispatched by Main to the matching
// method on [App]:
//   - [RunCommand]: App.Run
//   - [ParkCommand]: App.Park
//   - [MigrateCommand]: App.Migrate
//   - [CheckCommand]: App.Check
type Command interface {
	// Name returns the sub-command name used on the command line.
	Name() string
}

// RunCommand enforces the parked pages and then serves the HTTP API until
// the context is cancelled.
//
// Example usage:
//
//	pagetree run
//	pagetree -store postgres -port 8090 run
//	pagetree -read-only run
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

// ParkCommand enforces the parked page declarations and exits.
//
//	pagetree -parked parked.toml park
type ParkCommand struct{}

func (c *ParkCommand) Name() string {
	return "park"
}

// MigrateCommand creates the tables, collections and indexes of the
// configured store. It is safe to run repeatedly.
//
//	pagetree -store mongo migrate
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// CheckCommand loads every page and reports structural problems: duplicate
// paths, missing parents, wrong levels, rank ties and trash that is not
// closed under descent.
//
//	pagetree -store surrealdb check
type CheckCommand struct{}

func (c *CheckCommand) Name() string {
	return "check"
}
