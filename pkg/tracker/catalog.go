package tracker

import (
	"context"
	"errors"

	"github.com/transitlive/transitlive/pkg/store"
)

// StopCatalog resolves the stop candidate set the matcher runs against
// for a vehicle's assigned route.
type StopCatalog interface {
	RouteStops(ctx context.Context, routeRef string) ([]StopCandidate, error)
}

type EntityStopCatalog struct {
	entities store.EntityStore
}

func NewEntityStopCatalog(entities store.EntityStore) *EntityStopCatalog {
	return &EntityStopCatalog{entities: entities}
}

func (c *EntityStopCatalog) RouteStops(ctx context.Context, routeRef string) ([]StopCandidate, error) {
	route, err := c.entities.Route(ctx, routeRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRouteNotFound
	} else if err != nil {
		return nil, err
	}

	sequenceByRef := map[string]int{}
	for _, routeStop := range route.Stops {
		sequenceByRef[routeStop.StopRef] = routeStop.Sequence
	}

	stops, err := c.entities.RouteStops(ctx, routeRef)
	if err != nil {
		return nil, err
	}

	candidates := make([]StopCandidate, 0, len(stops))
	for _, stop := range stops {
		candidates = append(candidates, StopCandidate{
			Stop:     stop,
			Sequence: sequenceByRef[stop.PrimaryIdentifier],
		})
	}

	return candidates, nil
}
