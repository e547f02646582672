package settings

import (
	"fmt"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/config"
)

// SettingsCmd shows or edits config.yaml. Edits are validated before saving
// and take effect on the next command.
type SettingsCmd struct {
	List bool `help:"List current settings."`

	User             *string `help:"Default acting user."`
	Timezone         *string `help:"IANA timezone used for program days and streaks."`
	Redis            *string `help:"Redis address for the roster (empty to use the database, 'keyring' to read it from the OS keyring)."`
	DesktopAlerts    *bool   `help:"Show a desktop alert when a habit is completed."`
	DispatchAttempts *int    `help:"Delivery attempts before a completion event is parked."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	// Edit the file contents, not the effective config, so flag and env
	// overrides are not persisted
	cfg, err := config.Load(ctx.ConfigPath)
	if err != nil {
		return err
	}

	updated := false
	if c.User != nil {
		cfg.User = *c.User
		updated = true
	}
	if c.Timezone != nil {
		cfg.Timezone = *c.Timezone
		updated = true
	}
	if c.Redis != nil {
		cfg.Redis.Addr = *c.Redis
		updated = true
	}
	if c.DesktopAlerts != nil {
		cfg.Alerts.Desktop = *c.DesktopAlerts
		updated = true
	}
	if c.DispatchAttempts != nil {
		cfg.Dispatch.MaxAttempts = *c.DispatchAttempts
		updated = true
	}

	if !updated {
		printSettings(ctx.ConfigPath, ctx.Config)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := cfg.Save(ctx.ConfigPath); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Printf("✓ Settings saved to %s\n", ctx.ConfigPath)

	if c.List {
		printSettings(ctx.ConfigPath, cfg)
	}
	return nil
}

func printSettings(path string, cfg *config.Config) {
	redis := cfg.Redis.Addr
	if redis == "" {
		redis = "(database roster)"
	}
	fmt.Printf("Current Settings (%s):\n", path)
	fmt.Printf("  Database:          %s\n", cfg.Database)
	fmt.Printf("  User:              %s\n", cfg.User)
	fmt.Printf("  Timezone:          %s\n", cfg.Timezone)
	fmt.Printf("  Debug:             %v\n", cfg.Debug)
	fmt.Printf("  Redis:             %s\n", redis)
	fmt.Println("\nReward Dispatch:")
	fmt.Printf("  Interval:          %s\n", cfg.Dispatch.Interval)
	fmt.Printf("  Batch Size:        %d\n", cfg.Dispatch.BatchSize)
	fmt.Printf("  Max Attempts:      %d\n", cfg.Dispatch.MaxAttempts)
	fmt.Println("\nAlerts:")
	fmt.Printf("  Desktop:           %v\n", cfg.Alerts.Desktop)
}
