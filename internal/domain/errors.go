package domain

import "errors"

// Misuse errors. Capacity and terminal-state guards never return these; they
// report failure through bool/zero results instead.
var (
	ErrInvalidID         = errors.New("invalid identifier")
	ErrDuplicateStation  = errors.New("station already on route")
	ErrDuplicateSequence = errors.New("sequence order already used on route")
	ErrStationNotOnRoute = errors.New("station not on route")
	ErrWrongDirection    = errors.New("origin does not precede destination")
	ErrInvalidSegment    = errors.New("invalid route segment")
	ErrInvalidTicket     = errors.New("invalid ticket request")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
