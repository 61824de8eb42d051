package matcherrors

import "errors"

// Sentinel errors shared by storage, session, lobby and the transports.
// Kept in their own package so those packages can test for them without
// importing each other.
var (
	ErrNotFound           = errors.New("key not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
	ErrStaleSnapshot      = errors.New("snapshot is from a finished game")
	ErrInvalidDeck        = errors.New("invalid deck")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTableNotFound      = errors.New("table not found")
	ErrUnknownAction      = errors.New("unknown action")
)
