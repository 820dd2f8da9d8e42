package store

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownCounter    = errors.New("counter not found")
	ErrUnknownToken      = errors.New("token not found")
	ErrInvalidTransition = errors.New("invalid token state")
	ErrNoActiveToken     = errors.New("counter has no active token")
	ErrCounterInactive   = errors.New("counter inactive")
	ErrAnnouncerBusy     = errors.New("announcer busy")
	ErrJournalDisabled   = errors.New("journal disabled")
)
