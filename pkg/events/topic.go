package events

import (
	"errors"
	"fmt"
	"strings"
)

type TopicType string

const (
	TopicTypeRoute   TopicType = "route"
	TopicTypeStop    TopicType = "stop"
	TopicTypeVehicle TopicType = "vehicle"
)

// Topic is a named broadcast channel observers subscribe to,
// written on the wire as "route:<id>", "stop:<id>" or "vehicle:<id>"
type Topic struct {
	Type TopicType
	ID   string
}

func RouteTopic(routeRef string) Topic {
	return Topic{Type: TopicTypeRoute, ID: routeRef}
}

func StopTopic(stopRef string) Topic {
	return Topic{Type: TopicTypeStop, ID: stopRef}
}

func VehicleTopic(vehicleRef string) Topic {
	return Topic{Type: TopicTypeVehicle, ID: vehicleRef}
}

func (t Topic) String() string {
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

var ErrInvalidTopic = errors.New("topic must be route:<id>, stop:<id> or vehicle:<id>")

func ParseTopic(value string) (Topic, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Topic{}, ErrInvalidTopic
	}

	topicType := TopicType(parts[0])
	switch topicType {
	case TopicTypeRoute, TopicTypeStop, TopicTypeVehicle:
		return Topic{Type: topicType, ID: parts[1]}, nil
	}

	return Topic{}, ErrInvalidTopic
}
