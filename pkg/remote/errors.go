package remote

import "errors"

var (
	// ErrInvalidTarget is returned when a remote has neither an address
	// nor a client and unit to resolve one from
	ErrInvalidTarget = errors.New("remote needs either address or client and unit")

	// ErrNoAddressSource is returned when the address is unknown and there
	// is no client to look it up
	ErrNoAddressSource = errors.New("no address or client supplied")

	ErrInvalidArgument = errors.New("invalid argument")
)
