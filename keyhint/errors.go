package keyhint

import "errors"

var (
	// ErrUnknownPage is returned for a page id that is not attached.
	ErrUnknownPage = errors.New("keyhint: unknown page")
	// ErrPageExists is returned when attaching a page id twice.
	ErrPageExists = errors.New("keyhint: page already attached")
	// ErrClosed is returned once the Navigator has been stopped.
	ErrClosed = errors.New("keyhint: navigator closed")
	// ErrNoEventLog is returned by Events when no observability database
	// was configured.
	ErrNoEventLog = errors.New("keyhint: event log disabled")
)
