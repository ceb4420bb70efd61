package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidRadius     = errors.New("radius must be positive")
	ErrUnknownQueryKind  = errors.New("unknown query kind")
	ErrUnknownMarkerKind = errors.New("unknown marker kind")
)
