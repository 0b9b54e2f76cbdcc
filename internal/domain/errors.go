package domain

import "errors"

var (
	ErrDropNotFound        = errors.New("drop not found")
	ErrLineNotFound        = errors.New("drop line not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrQueueEntryNotFound  = errors.New("queue entry not found")

	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrConflict          = errors.New("conflicting drop state")

	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrSoldOut               = errors.New("sold out")

	ErrAlreadyQueued     = errors.New("already queued")
	ErrDropNotQueueable  = errors.New("drop not queueable")
	ErrDropNotLive       = errors.New("drop not live")
	ErrNoActiveTurn      = errors.New("no active queue turn")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")

	ErrReservationExpired   = errors.New("reservation expired")
	ErrReservationConfirmed = errors.New("reservation already confirmed")
	ErrReservationReleased  = errors.New("reservation released")

	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")

	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrNameRequired    = errors.New("name required")
	ErrInvalidType     = errors.New("invalid drop type")
	ErrInvalidSchedule = errors.New("invalid schedule")
)
