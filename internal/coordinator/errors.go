package coordinator

import "errors"

var (
	// ErrRequestInFlight is returned when Integrate is called while a
	// previous request is still collecting results. The coordinator serves
	// one top-level request at a time.
	ErrRequestInFlight = errors.New("coordinator: integration request already in flight")

	// ErrWorkerLost is returned when a worker holding outstanding tasks
	// disconnects before delivering its results. Tasks are not reassigned.
	ErrWorkerLost = errors.New("coordinator: worker lost with outstanding tasks")
)
