package rewards

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitrun/internal/cli"
	"github.com/julianstephens/habitrun/internal/constants"
)

type RewardsCmd struct {
	Balance  BalanceCmd  `cmd:"" help:"Show your reward balance." default:"1"`
	Dispatch DispatchCmd `cmd:"" help:"Deliver pending completion rewards now."`
}

type BalanceCmd struct{}

func (c *BalanceCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	units, err := ctx.Service.RewardBalance(bg, ctx.User())
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d %s(s)\n", ctx.User(), units, constants.RewardUnitName)
	return nil
}

type DispatchCmd struct{}

func (c *DispatchCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	n, err := ctx.Dispatcher.DispatchPending(bg)
	if err != nil {
		fmt.Printf("❌ Dispatch stopped after %d event(s)\n", n)
		return err
	}
	if n == 0 {
		fmt.Println("No pending completion events.")
		return nil
	}
	fmt.Printf("✓ Delivered %d completion event(s)\n", n)
	return nil
}
