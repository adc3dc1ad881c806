package delayestimator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/consumer"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"github.com/travigo/delayengine/pkg/elastic_client"
	"github.com/travigo/delayengine/pkg/redis_client"
	"github.com/urfave/cli/v2"
	"google.golang.org/protobuf/proto"
)

var dateFlag = &cli.StringFlag{
	Name:  "date",
	Usage: "Run date of the journeys in YYYY-MM-DD, today when empty",
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "delay-estimator",
		Usage: "Estimates journey delays from GPS samples, community reports and the last known delay",
		Subcommands: []*cli.Command{
			{
				Name:  "estimate",
				Usage: "estimate the delay of a single journey",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "journey",
						Usage:    "Primary identifier of the journey",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Do not write the estimate back to the journey",
					},
				},
				Action: func(c *cli.Context) error {
					estimator, err := setupEstimator(!c.Bool("dry-run"))
					if err != nil {
						return err
					}

					result, err := estimator.EstimateDelay(c.Context, c.String("journey"))
					if err != nil {
						return err
					}

					pretty.Println(result)

					return nil
				},
			},
			{
				Name:  "estimate-active",
				Usage: "estimate the delay of every active journey of a run date",
				Flags: []cli.Flag{dateFlag},
				Action: func(c *cli.Context) error {
					date, err := parseRunDate(c.String("date"))
					if err != nil {
						return err
					}

					estimator, err := setupEstimator(true)
					if err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					estimator.AddObserver(&ElasticEventRecorder{})

					results, err := estimator.EstimateDelayForActiveJourneys(c.Context, date)

					updated := 0
					for _, result := range results {
						if result.DelayUpdated {
							updated++
						}
					}

					log.Info().
						Str("date", date.Format(ctdf.JourneyRunDateFormat)).
						Int("processed", len(results)).
						Int("updated", updated).
						Msg("Estimated active journeys")

					elastic_client.WaitUntilQueueEmpty()

					return err
				},
			},
			{
				Name:  "schedule",
				Usage: "queue an estimate request for every active journey of a run date",
				Flags: []cli.Flag{dateFlag},
				Action: func(c *cli.Context) error {
					date, err := parseRunDate(c.String("date"))
					if err != nil {
						return err
					}

					estimator, err := setupEstimator(false)
					if err != nil {
						return err
					}

					queue, err := redis_client.QueueConnection.OpenQueue(EstimateQueueName)
					if err != nil {
						return err
					}

					_, err = ScheduleActiveJourneys(c.Context, estimator, queue, date)
					return err
				},
			},
			{
				Name:  "gtfs-rt",
				Usage: "write a GTFS-realtime trip updates feed for the active journeys of a run date",
				Flags: []cli.Flag{
					dateFlag,
					&cli.StringFlag{
						Name:     "output",
						Usage:    "File to write the protobuf feed to",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					date, err := parseRunDate(c.String("date"))
					if err != nil {
						return err
					}

					estimator, err := setupEstimator(false)
					if err != nil {
						return err
					}

					results, err := estimator.EstimateDelayForActiveJourneys(c.Context, date)
					if errors.Is(err, ErrLoadActiveJourneys) {
						return err
					} else if err != nil {
						log.Error().Err(err).Msg("Some journeys could not be estimated")
					}

					feed, err := proto.Marshal(BuildTripUpdatesFeed(results, estimator.Now()))
					if err != nil {
						return err
					}

					return os.WriteFile(c.String("output"), feed, 0644)
				},
			},
			{
				Name:  "run",
				Usage: "run the estimate queue consumers",
				Action: func(c *cli.Context) error {
					estimator, err := setupEstimator(true)
					if err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					registry := prometheus.NewRegistry()
					estimator.AddObserver(NewResultCache(redis_client.Client))
					estimator.AddObserver(NewMetrics(registry))
					estimator.AddObserver(&ElasticEventRecorder{})

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					if path := os.Getenv(ConfigPathEnvironmentVariable); path != "" {
						go func() {
							if err := WatchConfig(ctx, path, estimator.SetConfig); err != nil {
								log.Error().Err(err).Msg("Config watcher stopped")
							}
						}()
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       EstimateQueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         5 * time.Second,
						Consumer:        NewEstimateBatchConsumer(estimator),
						Gatherer:        registry,
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
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
		},
	}
}

// setupEstimator connects the stores and builds a mongo backed estimator. Without writeBack the
// estimator never updates journeys.
func setupEstimator(writeBack bool) (*Estimator, error) {
	config, err := GetConfig()
	if err != nil {
		return nil, err
	}

	if err := database.Connect(); err != nil {
		return nil, err
	}
	if err := redis_client.Connect(); err != nil {
		return nil, err
	}

	store := NewMongoStore()

	var updater DelayUpdater
	if writeBack {
		publisher, err := NewQueuePublisher()
		if err != nil {
			return nil, err
		}

		updater = NewMongoDelayUpdater(publisher)
	}

	return NewEstimator(store, store, updater, config), nil
}

func parseRunDate(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	date, err := time.Parse(ctdf.JourneyRunDateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run date %q: %w", value, err)
	}

	return date, nil
}
