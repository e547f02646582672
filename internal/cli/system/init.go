package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/julianstephens/habitrun/internal/catalog"
	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/storage"
)

type InitCmd struct {
	Force   bool   `help:"Force reset by deleting existing database before initialization."`
	Catalog string `help:"Habit catalog JSON file to import after initialization." type:"path"`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if storage.IsPostgres(ctx.Store.GetConfigPath()) {
			return fmt.Errorf("--force is only supported for SQLite databases")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			// Close first so the file is not held open while deleting
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized habitrun storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Catalog != "" {
		defs, err := catalog.LoadFile(c.Catalog)
		if err != nil {
			return err
		}
		report, err := catalog.Import(context.Background(), ctx.Store, defs, catalog.ImportOptions{Now: time.Now()})
		if err != nil {
			return fmt.Errorf("catalog import failed: %w", err)
		}
		fmt.Printf("Imported %d habit(s) with %d task(s)\n", report.Habits, report.Tasks)
	}
	return nil
}
