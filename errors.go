package fabricator

import (
	"errors"
)

var (
	// ErrNilAdapter is returned by New when no adapter is given.
	ErrNilAdapter = errors.New("fabricator: adapter is nil")
	// ErrNoActiveSession is returned when a session is stopped without a matching start.
	ErrNoActiveSession = errors.New("fabricator: no active session")
	// ErrMissingID is returned when rows to update carry no id column.
	ErrMissingID = errors.New("fabricator: row has no id column")
)
