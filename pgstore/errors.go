package pgstore

import "errors"

// Sentinel errors identify broad failure categories. Wrap them with
// errors.Is-compatible *Error values via wrapErr so callers can branch on
// category without parsing driver-specific messages.
var (
	ErrInvalidArgument = errors.New("pgstore: invalid argument")
	ErrSchemaConflict  = errors.New("pgstore: schema conflict")
	ErrConnectivity    = errors.New("pgstore: connectivity")
	ErrNotFound        = errors.New("pgstore: not found")
	ErrSerialization   = errors.New("pgstore: serialization")
)

// Error wraps an underlying error with the operation that produced it and
// the sentinel category it belongs to.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target matches this error's category, so
// errors.Is(err, pgstore.ErrNotFound) works without unwrapping to Err.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func wrapErr(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
