package cam

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("cam: invalid configuration")
	// ErrMissingCollaborator reports an absent link, kinematic provider or scheduler.
	ErrMissingCollaborator = errors.New("cam: missing collaborator")
	// ErrTooSmall is matched by a *DecodeError of kind TooSmall.
	ErrTooSmall = errors.New("cam: frame too small")
	// ErrSendFailure reports that the link refused a frame.
	ErrSendFailure = errors.New("cam: link send failed")
)

// ConfigurationError describes a rejected configuration value.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cam: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// DecodeKind classifies decode failures.
type DecodeKind int

const (
	// TooSmall means the buffer is shorter than BeaconSize.
	TooSmall DecodeKind = iota + 1
)

func (k DecodeKind) String() string {
	switch k {
	case TooSmall:
		return "too small"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode.
type DecodeError struct {
	Kind DecodeKind
	Size int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cam: decode %d-byte frame: %s (need %d)", e.Size, e.Kind, BeaconSize)
}

func (e *DecodeError) Unwrap() error {
	if e.Kind == TooSmall {
		return ErrTooSmall
	}
	return nil
}
