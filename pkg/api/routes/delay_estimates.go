package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
	"google.golang.org/protobuf/proto"
)

// DelayEstimatesHandler serves estimates across every active journey of a run date
type DelayEstimatesHandler struct {
	Estimator DelayEstimator
	Now       func() time.Time
}

func DelayEstimatesRouter(router fiber.Router, handler *DelayEstimatesHandler) {
	router.Get("/", handler.listDelayEstimates)
}

func GTFSRealtimeRouter(router fiber.Router, handler *DelayEstimatesHandler) {
	router.Get("/trip_updates", handler.getTripUpdates)
}

func (h *DelayEstimatesHandler) runDate(c *fiber.Ctx) (time.Time, error) {
	value := c.Query("date")
	if value == "" {
		now := h.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	return time.Parse(ctdf.JourneyRunDateFormat, value)
}

// estimates returns whatever could be estimated, logging the journeys that failed. A batch that
// could not load its journeys is answered with a 500.
func (h *DelayEstimatesHandler) estimates(c *fiber.Ctx) ([]*delayestimator.EstimationResult, bool) {
	date, err := h.runDate(c)
	if err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		c.JSON(fiber.Map{
			"error": "date must be in YYYY-MM-DD format",
		})
		return nil, false
	}

	results, err := h.Estimator.EstimateDelayForActiveJourneys(c.UserContext(), date)
	if errors.Is(err, delayestimator.ErrLoadActiveJourneys) {
		c.SendStatus(fiber.StatusInternalServerError)
		c.JSON(fiber.Map{
			"error": err.Error(),
		})
		return nil, false
	} else if err != nil {
		log.Error().Err(err).Str("date", date.Format(ctdf.JourneyRunDateFormat)).Msg("Failed to estimate some active journeys")
	}

	if results == nil {
		results = []*delayestimator.EstimationResult{}
	}

	return results, true
}

func (h *DelayEstimatesHandler) listDelayEstimates(c *fiber.Ctx) error {
	results, ok := h.estimates(c)
	if !ok {
		return nil
	}

	return sendEstimationResult(c, results)
}

func (h *DelayEstimatesHandler) getTripUpdates(c *fiber.Ctx) error {
	results, ok := h.estimates(c)
	if !ok {
		return nil
	}

	feed, err := proto.Marshal(delayestimator.BuildTripUpdatesFeed(results, h.Now()))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-protobuf")
	return c.Send(feed)
}
