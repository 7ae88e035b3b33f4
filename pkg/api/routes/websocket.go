package routes

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/tracker"
)

type subscriptionMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

func registerWebsocket(router fiber.Router, liveTracker *tracker.Tracker, broadcaster *events.Broadcaster) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		observer := events.NewObserver(conn.RemoteAddr().String())
		defer broadcaster.Disconnect(observer)

		log.Info().Str("observer", observer.ID()).Msg("Observer connected")

		go func() {
			defer broadcaster.Disconnect(observer)

			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					log.Info().Str("observer", observer.ID()).Msg("Observer disconnected")
					return
				}

				handleSubscriptionMessage(liveTracker, broadcaster, observer, message)
			}
		}()

		// Single writer per connection, the observer channel preserves
		// publish order
		for event := range observer.Events() {
			if err := conn.WriteJSON(event); err != nil {
				break
			}
		}

		conn.Close()
	}))
}

func handleSubscriptionMessage(liveTracker *tracker.Tracker, broadcaster *events.Broadcaster, observer *events.Observer, message []byte) {
	var subscription subscriptionMessage
	if err := json.Unmarshal(message, &subscription); err != nil {
		observer.Deliver(events.NewEvent("error", fiber.Map{
			"error": "Message must be a subscription action",
		}))
		return
	}

	topic, err := events.ParseTopic(subscription.Topic)
	if err != nil {
		observer.Deliver(events.NewEvent("error", fiber.Map{
			"error": err.Error(),
		}))
		return
	}

	switch subscription.Action {
	case "subscribe":
		broadcaster.Subscribe(observer, topic)

		// Joining a route topic immediately replies with the current
		// snapshot of its active vehicles, once, to this observer only
		if topic.Type == events.TopicTypeRoute {
			snapshotEvent, err := liveTracker.RouteVehiclesEvent(context.Background(), topic.ID)
			if err != nil {
				log.Error().Err(err).Str("route", topic.ID).Msg("Failed to build route vehicles snapshot")
				return
			}

			observer.Deliver(snapshotEvent)
		}
	case "unsubscribe":
		broadcaster.Unsubscribe(observer, topic)
	default:
		observer.Deliver(events.NewEvent("error", fiber.Map{
			"error": "Action must be subscribe or unsubscribe",
		}))
	}
}
