package telegram

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every error returned by this package wraps exactly one.
var (
	ErrInvalidLength = errors.New("invalid telegram length")
	ErrFraming       = errors.New("framing error")
	ErrParity        = errors.New("parity error")
	ErrRange         = errors.New("value out of range")
)

// DecodeError describes why a telegram was rejected.
type DecodeError struct {
	Kind   error  // one of the Err* sentinels
	Field  string // telegram field or parity group that failed
	Bit    int    // offending bit index, -1 when not tied to one bit
	Detail string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Field)
	if e.Bit >= 0 {
		msg += fmt.Sprintf(" (bit %d)", e.Bit)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// Kind maps an error to a short machine-readable label: invalid_length,
// framing, parity or range. It returns "" for nil and for errors not
// produced by this package.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrParity):
		return "parity"
	case errors.Is(err, ErrRange):
		return "range"
	default:
		return ""
	}
}
