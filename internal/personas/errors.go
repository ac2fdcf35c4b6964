package personas

import "errors"

var (
	ErrUnknownKind   = errors.New("unknown persona kind")
	ErrDuplicateKind = errors.New("persona kind configured twice")
	ErrNoModel       = errors.New("persona has no model configured")
)
