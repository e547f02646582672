package system

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/keyring"
	"github.com/julianstephens/habitrun/internal/roster"
	"github.com/julianstephens/habitrun/internal/storage"
)

type DoctorCmd struct{}

// sqlBacked is implemented by stores that expose their connection for ad-hoc checks.
type sqlBacked interface {
	GetDB() *sql.DB
}

type check struct {
	name    string
	needsDB bool
	warn    bool
	run     func(context.Context, *cli.Context) error
}

var doctorChecks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "Catalog present", needsDB: true, warn: true, run: checkCatalogPresent},
	{name: "Enrollment integrity", needsDB: true, run: checkEnrollmentIntegrity},
	{name: "Reward outbox", needsDB: true, warn: true, run: checkOutbox},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Keyring", warn: true, run: checkKeyring},
	{name: "Roster backend", run: checkRoster},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	bg := context.Background()
	hasError := false
	dbReachable := false

	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}

	for _, c := range doctorChecks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warn:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	if s, ok := ctx.Store.(sqlBacked); ok {
		db := s.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(bg context.Context, ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(bg context.Context, ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run '%s migrate')", current, latest, constants.AppName)
	}
	return nil
}

func checkCatalogPresent(bg context.Context, ctx *cli.Context) error {
	habits, err := ctx.Store.ListHabits(bg)
	if err != nil {
		return fmt.Errorf("failed to list habits: %w", err)
	}
	if len(habits) == 0 {
		return fmt.Errorf("no habits in the catalog - import one with '%s catalog import <file>'", constants.AppName)
	}
	return nil
}

func checkEnrollmentIntegrity(bg context.Context, ctx *cli.Context) error {
	s, ok := ctx.Store.(sqlBacked)
	if !ok {
		return nil
	}
	db := s.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var orphaned int
	err := db.QueryRowContext(bg, `
		SELECT COUNT(*)
		FROM enrollments e
		LEFT JOIN habits h ON e.habit_id = h.id
		WHERE h.id IS NULL
	`).Scan(&orphaned)
	if err != nil {
		return fmt.Errorf("failed to check orphaned enrollments: %w", err)
	}
	if orphaned > 0 {
		return fmt.Errorf("found %d enrollments referencing habits missing from the catalog", orphaned)
	}

	var completedWithoutEvent int
	err = db.QueryRowContext(bg, `
		SELECT COUNT(*)
		FROM enrollments e
		LEFT JOIN completion_events ce ON ce.enrollment_id = e.id
		WHERE e.is_completed = 1 AND ce.id IS NULL
	`).Scan(&completedWithoutEvent)
	if err != nil {
		return fmt.Errorf("failed to check completion events: %w", err)
	}
	if completedWithoutEvent > 0 {
		return fmt.Errorf("found %d completed enrollments without a completion event", completedWithoutEvent)
	}
	return nil
}

func checkOutbox(bg context.Context, ctx *cli.Context) error {
	s, ok := ctx.Store.(sqlBacked)
	if !ok {
		return nil
	}
	db := s.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var stuck int
	err := db.QueryRowContext(bg, `
		SELECT COUNT(*)
		FROM completion_events
		WHERE dispatched_at IS NULL AND attempts >= ?
	`, ctx.Config.Dispatch.MaxAttempts).Scan(&stuck)
	if err != nil {
		return fmt.Errorf("failed to check outbox: %w", err)
	}
	if stuck > 0 {
		return fmt.Errorf("%d completion event(s) exhausted their retries - inspect with '%s debug dump-outbox'", stuck, constants.AppName)
	}
	return nil
}

func checkClockTimezone(_ context.Context, ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := ctx.Config.Location(); err != nil {
		return fmt.Errorf("timezone %q: %w", ctx.Config.Timezone, err)
	}
	return nil
}

func checkKeyring(_ context.Context, ctx *cli.Context) error {
	if !storage.IsPostgres(ctx.Store.GetConfigPath()) {
		return nil
	}
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; use %s or .pgpass for credentials", constants.EnvDBConn)
	}
	return nil
}

func checkRoster(bg context.Context, ctx *cli.Context) error {
	addr, err := keyring.ResolveRedisAddr(ctx.Config.Redis.Addr)
	if err != nil {
		return fmt.Errorf("failed to resolve redis address: %w", err)
	}
	if addr == "" {
		return nil
	}
	r, err := roster.NewRedis(bg, addr)
	if err != nil {
		return err
	}
	return r.Close()
}
