package scheduler

import "errors"

var (
	ErrRegistrationClosed = errors.New("scheduler: registration closed")
	ErrUnknownHandle      = errors.New("scheduler: unknown handle")
	ErrInvalidPeriod      = errors.New("scheduler: period must be >= 0")
	ErrNilTask            = errors.New("scheduler: nil task")
)
