package delayestimator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const EstimateQueueName = "estimate-queue"

// EstimateRequest asks the consumers to run one estimation for a journey
type EstimateRequest struct {
	JourneyRef string
	Requested  time.Time
}

func (r EstimateRequest) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

// EstimateBatchConsumer runs an estimation for every request in a delivery batch
type EstimateBatchConsumer struct {
	Estimator *Estimator

	MaxConcurrency int
	Timeout        time.Duration
}

func NewEstimateBatchConsumer(estimator *Estimator) *EstimateBatchConsumer {
	return &EstimateBatchConsumer{
		Estimator:      estimator,
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
	}
}

func (c *EstimateBatchConsumer) Consume(batch rmq.Deliveries) {
	p := pool.New().WithMaxGoroutines(c.MaxConcurrency)

	for _, delivery := range batch {
		p.Go(func() {
			c.consumeDelivery(delivery)
		})
	}

	p.Wait()
}

func (c *EstimateBatchConsumer) consumeDelivery(delivery rmq.Delivery) {
	var request EstimateRequest
	if err := json.Unmarshal([]byte(delivery.Payload()), &request); err != nil || request.JourneyRef == "" {
		log.Error().Err(err).Str("payload", delivery.Payload()).Msg("Invalid estimate request")
		rejectDelivery(delivery)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	_, err := c.Estimator.EstimateDelay(ctx, request.JourneyRef)
	if errors.Is(err, ErrJourneyNotFound) {
		log.Warn().Str("journey", request.JourneyRef).Msg("Estimate requested for unknown journey")
		rejectDelivery(delivery)
		return
	} else if err != nil {
		log.Error().Err(err).Str("journey", request.JourneyRef).Msg("Failed to estimate journey delay")
		rejectDelivery(delivery)
		return
	}

	if err := delivery.Ack(); err != nil {
		log.Error().Err(err).Str("journey", request.JourneyRef).Msg("Failed to ack estimate request")
	}
}

func rejectDelivery(delivery rmq.Delivery) {
	if err := delivery.Reject(); err != nil {
		log.Error().Err(err).Msg("Failed to reject estimate request")
	}
}

// ScheduleActiveJourneys queues an estimate request for every active journey of date
func ScheduleActiveJourneys(ctx context.Context, estimator *Estimator, queue rmq.Queue, date time.Time) (int, error) {
	journeys, err := estimator.ActiveJourneys(ctx, date)
	if err != nil {
		return 0, err
	}

	now := estimator.Now()
	for _, journey := range journeys {
		request, _ := EstimateRequest{JourneyRef: journey.PrimaryIdentifier, Requested: now}.MarshalBinary()

		if err := queue.PublishBytes(request); err != nil {
			return 0, err
		}
	}

	log.Info().Int("journeys", len(journeys)).Msg("Scheduled delay estimations")

	return len(journeys), nil
}
