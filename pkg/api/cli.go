package api

import (
	"github.com/travigo/delayengine/pkg/database"
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
	"github.com/travigo/delayengine/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the delay estimate web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.BoolFlag{
						Name:  "write-back",
						Usage: "Write estimates requested through the API back to the journeys",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := delayestimator.GetConfig()
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					store := delayestimator.NewMongoStore()
					resultCache := delayestimator.NewResultCache(redis_client.Client)

					var updater delayestimator.DelayUpdater
					if c.Bool("write-back") {
						publisher, err := delayestimator.NewQueuePublisher()
						if err != nil {
							return err
						}
						updater = delayestimator.NewMongoDelayUpdater(publisher)
					}

					estimator := delayestimator.NewEstimator(store, store, updater, config)
					estimator.AddObserver(resultCache)

					return SetupServer(c.String("listen"), Services{
						Journeys:  store,
						Estimator: estimator,
						Latest:    resultCache,
					})
				},
			},
		},
	}
}
