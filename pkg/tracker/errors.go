package tracker

import "errors"

var (
	ErrVehicleNotFound = errors.New("could not find referenced Vehicle")
	ErrRouteNotFound   = errors.New("could not find referenced Route")

	ErrInvalidInput     = errors.New("report failed validation")
	ErrInvalidLocation  = errors.New("report location is malformed or out of range")
	ErrInvalidOccupancy = errors.New("report occupancy is outside the vehicle capacity")
	ErrInvalidStatus    = errors.New("unknown vehicle status")
)
