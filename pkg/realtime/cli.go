package realtime

import (
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime sources",
		Subcommands: []*cli.Command{
			delayestimator.RegisterCLI(),
		},
	}
}
