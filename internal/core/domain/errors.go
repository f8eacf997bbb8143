package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a synthesis or audio object does not exist or has expired.
	ErrNotFound = errors.New("domain: not found")
	// ErrInvalidArgument covers missing uploads, bad color counts and empty frequency sequences.
	ErrInvalidArgument = errors.New("domain: invalid argument")
	// ErrDecode indicates the uploaded bytes are not a decodable image.
	ErrDecode = errors.New("domain: cannot decode image")
	// ErrStorage indicates the synthesized waveform could not be persisted or read back.
	ErrStorage = errors.New("domain: storage failure")
)

// DecodeError provides context for an image that failed to decode.
type DecodeError struct {
	Err error
}

func (e DecodeError) Error() string {
	if e.Err == nil {
		return ErrDecode.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDecode.Error(), e.Err)
}

func (e DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// InvalidArgumentf builds an error wrapping ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
