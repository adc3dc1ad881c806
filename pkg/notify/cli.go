package notify

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/travigo/delayengine/pkg/consumer"
	"github.com/travigo/delayengine/pkg/redis_client"
	"github.com/travigo/delayengine/pkg/util"
	"github.com/urfave/cli/v2"
)

const EventsQueueName = "events-queue"

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Broadcasts journey delay changes over NATS",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the delay change broadcaster",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					broadcaster, err := NewNATSBroadcaster(util.GetEnvironmentVariable("TRAVIGO_NATS_URL", nats.DefaultURL))
					if err != nil {
						return err
					}
					defer broadcaster.Close()

					redisConsumer := consumer.RedisConsumer{
						QueueName:       EventsQueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewNotifyBatchConsumer(broadcaster),
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
