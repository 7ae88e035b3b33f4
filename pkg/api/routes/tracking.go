package routes

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/tracker"
	"github.com/transitlive/transitlive/pkg/transit"
)

func TrackingRouter(router fiber.Router, liveTracker *tracker.Tracker, broadcaster *events.Broadcaster) {
	router.Post("/location", submitLocation(liveTracker))
	router.Post("/status", updateStatus(liveTracker))
	router.Post("/occupancy", updateOccupancy(liveTracker))

	router.Get("/all", allVehicles(liveTracker))
	router.Get("/route/:routeId", routeVehicles(liveTracker))
	router.Get("/nearby", nearbyVehicles(liveTracker))
	router.Get("/history/:vehicleId", vehicleHistory(liveTracker))
	router.Get("/eta/:routeId", routeETA(liveTracker))

	registerWebsocket(router, liveTracker, broadcaster)
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, tracker.ErrVehicleNotFound), errors.Is(err, tracker.ErrRouteNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, tracker.ErrInvalidInput),
		errors.Is(err, tracker.ErrInvalidLocation),
		errors.Is(err, tracker.ErrInvalidOccupancy),
		errors.Is(err, tracker.ErrInvalidStatus):
		return fiber.StatusBadRequest
	}

	return fiber.StatusInternalServerError
}

func submitLocation(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var report transit.LocationReport
		if err := c.BodyParser(&report); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body must be a valid location report",
			})
		}

		ack, err := liveTracker.SubmitReport(c.Context(), report)
		if err != nil {
			c.SendStatus(rejectionStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(ack)
	}
}

type statusUpdateBody struct {
	VehicleRef string                `json:"vehicleId"`
	Status     transit.VehicleStatus `json:"status"`
}

func updateStatus(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body statusUpdateBody
		if err := c.BodyParser(&body); err != nil || body.VehicleRef == "" {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body must contain vehicleId and status",
			})
		}

		vehicle, err := liveTracker.UpdateStatus(c.Context(), body.VehicleRef, body.Status)
		if err != nil {
			c.SendStatus(rejectionStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(vehicle)
	}
}

type occupancyUpdateBody struct {
	VehicleRef string `json:"vehicleId"`
	Occupancy  int    `json:"occupancy"`
}

func updateOccupancy(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body occupancyUpdateBody
		if err := c.BodyParser(&body); err != nil || body.VehicleRef == "" {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body must contain vehicleId and occupancy",
			})
		}

		vehicle, err := liveTracker.UpdateOccupancy(c.Context(), body.VehicleRef, body.Occupancy)
		if err != nil {
			c.SendStatus(rejectionStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(vehicle)
	}
}

func reducedVehiclesResponse(c *fiber.Ctx, vehicles interface{}) error {
	vehiclesReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, vehicles)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not reduce vehicles",
		})
	}

	return c.JSON(vehiclesReduced)
}

func allVehicles(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.ParseInt(c.Query("limit", "100"), 10, 64)
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter limit should be an integer",
			})
		}

		vehicles, err := liveTracker.ActiveVehicles(c.Context(), "", limit)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return reducedVehiclesResponse(c, vehicles)
	}
}

func routeVehicles(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.ParseInt(c.Query("limit", "50"), 10, 64)
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter limit should be an integer",
			})
		}

		vehicles, err := liveTracker.ActiveVehicles(c.Context(), c.Params("routeId"), limit)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return reducedVehiclesResponse(c, vehicles)
	}
}

func nearbyVehicles(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		longitude, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		latitude, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		if lngErr != nil || latErr != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Longitude and latitude are required",
			})
		}

		radius, radiusErr := strconv.ParseFloat(c.Query("radius", "2000"), 64)
		limit, limitErr := strconv.ParseInt(c.Query("limit", "20"), 10, 64)
		if radiusErr != nil || limitErr != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameters radius and limit should be numbers",
			})
		}

		nearby, err := liveTracker.VehiclesNearby(c.Context(), transit.NewPoint(longitude, latitude), radius, limit)
		if err != nil {
			c.SendStatus(rejectionStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return reducedVehiclesResponse(c, nearby)
	}
}

func vehicleHistory(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hours, hoursErr := strconv.Atoi(c.Query("hours", "24"))
		limit, limitErr := strconv.ParseInt(c.Query("limit", "200"), 10, 64)
		if hoursErr != nil || limitErr != nil || hours <= 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameters hours and limit should be positive integers",
			})
		}

		records, err := liveTracker.VehicleHistory(c.Context(), c.Params("vehicleId"), time.Duration(hours)*time.Hour, limit)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(records)
	}
}

func routeETA(liveTracker *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		etaTable, err := liveTracker.RouteETA(c.Context(), c.Params("routeId"), c.Query("stopId"))
		if err != nil {
			c.SendStatus(rejectionStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(etaTable)
	}
}
