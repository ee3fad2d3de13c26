package update

import (
	"errors"
	"fmt"
)

// Error variables for the failure kinds a workflow can stop on.
var (
	ErrNetworkFailure  = fmt.Errorf("network request failed")
	ErrArchiveFormat   = fmt.Errorf("unexpected archive format")
	ErrMalformedRemote = fmt.Errorf("malformed remote resource")
	ErrLocalIO         = fmt.Errorf("local file operation failed")
)

// Kind returns a short machine-readable name for the failure kind of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetworkFailure):
		return "network"
	case errors.Is(err, ErrArchiveFormat):
		return "archive"
	case errors.Is(err, ErrMalformedRemote):
		return "remote"
	case errors.Is(err, ErrLocalIO):
		return "local-io"
	default:
		return "unknown"
	}
}

func localIO(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLocalIO, op, err)
}
