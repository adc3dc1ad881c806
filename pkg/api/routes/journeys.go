package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
)

type JourneyGetter interface {
	GetJourney(ctx context.Context, journeyID string) (*ctdf.Journey, error)
}

type DelayEstimator interface {
	EstimateDelay(ctx context.Context, journeyID string) (*delayestimator.EstimationResult, error)
	EstimateDelayForActiveJourneys(ctx context.Context, date time.Time) ([]*delayestimator.EstimationResult, error)
}

type LatestEstimates interface {
	Get(ctx context.Context, journeyID string) (*delayestimator.EstimationResult, error)
}

// JourneysHandler serves journeys and their delay estimates
type JourneysHandler struct {
	Journeys  JourneyGetter
	Estimator DelayEstimator
	Latest    LatestEstimates
}

func JourneysRouter(router fiber.Router, handler *JourneysHandler) {
	router.Get("/:identifier", handler.getJourney)
	router.Get("/:identifier/delay_estimate", handler.estimateJourneyDelay)
	router.Get("/:identifier/delay_estimate/latest", handler.getLatestDelayEstimate)
}

func (h *JourneysHandler) getJourney(c *fiber.Ctx) error {
	journey, err := h.Journeys.GetJourney(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendLookupError(c, err)
	}

	journeyReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}, journey)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Journey",
		})
	}

	return c.JSON(journeyReduced)
}

func (h *JourneysHandler) estimateJourneyDelay(c *fiber.Ctx) error {
	result, err := h.Estimator.EstimateDelay(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendLookupError(c, err)
	}

	return sendEstimationResult(c, result)
}

func (h *JourneysHandler) getLatestDelayEstimate(c *fiber.Ctx) error {
	result, err := h.Latest.Get(c.UserContext(), c.Params("identifier"))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if result == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No delay estimate available",
		})
	}

	return sendEstimationResult(c, result)
}

func sendLookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, delayestimator.ErrJourneyNotFound):
		c.SendStatus(fiber.StatusNotFound)
	case errors.Is(err, ctdf.ErrInvalidJourney):
		c.SendStatus(fiber.StatusUnprocessableEntity)
	default:
		c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendEstimationResult(c *fiber.Ctx, result any) error {
	groups := []string{"basic"}
	if c.QueryBool("detailed", false) {
		groups = append(groups, "detailed")
	}

	resultReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, result)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce EstimationResult",
		})
	}

	return c.JSON(resultReduced)
}
