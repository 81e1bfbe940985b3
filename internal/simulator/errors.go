package simulator

import "errors"

var (
	// ErrUnexpectedStatus is returned when the API answers with a status the
	// simulator does not handle.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMatchUnknown is returned when an event is rejected because its match
	// does not exist.
	ErrMatchUnknown = errors.New("match unknown")
)
