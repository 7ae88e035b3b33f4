package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/transitlive/transitlive/pkg/api/routes"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/tracker"
)

func SetupServer(listen string, liveTracker *tracker.Tracker, broadcaster *events.Broadcaster) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.TrackingRouter(group.Group("/tracking"), liveTracker, broadcaster)

	return webApp.Listen(listen)
}
