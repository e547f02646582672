package system

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/notifier"
)

// NotifyCmd sends a message through the desktop tray app. It is used to check
// that completion alerts can be delivered.
type NotifyCmd struct {
	Text   string `arg:"" optional:"" help:"Message to show."`
	DryRun bool   `help:"Print the notification to stdout instead of sending it."`
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	text := c.Text
	if text == "" {
		text = notifier.HabitCompletedMessage("", 1)
	}

	if c.DryRun {
		fmt.Println("[DryRun] " + text)
		return nil
	}

	if !ctx.Config.Alerts.Desktop {
		fmt.Println("⚠ Desktop alerts are disabled in config (alerts.desktop: false)")
	}

	if err := notifier.New().Notify(context.Background(), text); err != nil {
		if errors.Is(err, notifier.ErrTrayNotRunning) {
			return fmt.Errorf("tray app is not running: %w", err)
		}
		return fmt.Errorf("failed to send notification: %w", err)
	}
	fmt.Println("✓ Notification sent")
	return nil
}
