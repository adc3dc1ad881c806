package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/delayengine/pkg/api/routes"
)

type Services struct {
	Journeys  routes.JourneyGetter
	Estimator routes.DelayEstimator
	Latest    routes.LatestEstimates

	Now func() time.Time
}

func NewApp(services Services) *fiber.App {
	if services.Now == nil {
		services.Now = time.Now
	}

	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.JourneysRouter(group.Group("/journeys"), &routes.JourneysHandler{
		Journeys:  services.Journeys,
		Estimator: services.Estimator,
		Latest:    services.Latest,
	})

	delayEstimates := &routes.DelayEstimatesHandler{
		Estimator: services.Estimator,
		Now:       services.Now,
	}
	routes.DelayEstimatesRouter(group.Group("/delay_estimates"), delayEstimates)
	routes.GTFSRealtimeRouter(group.Group("/gtfs-rt"), delayEstimates)

	return webApp
}

func SetupServer(listen string, services Services) error {
	return NewApp(services).Listen(listen)
}
