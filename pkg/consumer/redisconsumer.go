package consumer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/redis_client"
)

const defaultStatsAddress = ":3333"

type RedisConsumer struct {
	QueueName string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	Consumer rmq.BatchConsumer

	// StatsAddress is where the queue stats, health and metrics endpoints listen. Defaults to :3333
	StatsAddress string
	// Gatherer backs the /metrics endpoint, the default registry when nil
	Gatherer prometheus.Gatherer
}

func (c *RedisConsumer) Setup() error {
	if err := c.startConsumers(redis_client.QueueConnection); err != nil {
		return err
	}

	c.startStatsServer()

	return nil
}

func (c *RedisConsumer) startConsumers(connection rmq.Connection) error {
	log.Info().Str("queue", c.QueueName).Msg("Starting consumers")

	queue, err := connection.OpenQueue(c.QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers*c.BatchSize), 1*time.Second); err != nil {
		return err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		log.Info().Msgf("Starting %s consumer %d", c.QueueName, i)

		if _, err := queue.AddBatchConsumer(fmt.Sprintf("%s-%d", c.QueueName, i), int64(c.BatchSize), c.Timeout, c.Consumer); err != nil {
			return err
		}
	}

	return nil
}

func (c *RedisConsumer) statsHandler() http.Handler {
	gatherer := c.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle(fmt.Sprintf("/%s/stats", c.QueueName), NewStatsHandler(redis_client.QueueConnection))
	mux.Handle("/health", NewHealthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (c *RedisConsumer) startStatsServer() {
	address := c.StatsAddress
	if address == "" {
		address = defaultStatsAddress
	}

	server := &http.Server{
		Addr:              address,
		Handler:           c.statsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Msgf("Stats server listening on http://localhost%s/%s/stats", address, c.QueueName)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Stats server stopped")
		}
	}()
}
