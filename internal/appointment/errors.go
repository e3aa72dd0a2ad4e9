package appointment

import "errors"

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotConflict      = errors.New("time slot is already booked")
	ErrValidation        = errors.New("validation failed")
	// ErrSlotBusy means another request held the slot lock for longer than the
	// configured wait. The caller may retry.
	ErrSlotBusy = errors.New("slot is currently being booked, please retry")
)
