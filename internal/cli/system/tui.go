package system

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/logger"
	"github.com/julianstephens/habitrun/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctx.Open(runCtx); err != nil {
		return err
	}

	// Rewards are granted in the background while the dashboard is open
	go func() {
		if err := ctx.Dispatcher.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Warn("Reward dispatcher stopped", "error", err)
		}
	}()

	m := tui.NewModel(ctx.Service, ctx.Catalog, ctx.User(), ctx.Location)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}

	cancel()
	ctx.Flush(context.Background())
	return nil
}
