package dbwatch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/database"
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
	"github.com/travigo/delayengine/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dbwatch",
		Usage: "Watches the database for new journey signals and queues delay estimates",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the signal watcher",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					requests, err := redis_client.QueueConnection.OpenQueue(delayestimator.EstimateQueueName)
					if err != nil {
						return err
					}

					log.Info().Msg("Starting dbwatch server")

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					watch := NewSignalsWatch(requests)
					done := make(chan struct{})
					go func() {
						watch.Run(ctx)
						close(done)
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					<-done

					return nil
				},
			},
		},
	}
}
