package core

import (
	"errors"
	"fmt"
)

// IOError represents filesystem failures while copying, reading or removing
// the delivered file.
type IOError struct {
	Op   string // The operation that failed (e.g., "copy", "read", "remove")
	Path string // Path the operation was working on
	Err  error  // Underlying error, if any
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("io error during %s of %s", e.Op, e.Path)
	}
	return fmt.Sprintf("io error during %s of %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// SMTPError represents failures talking to the mail server, covering connect,
// TLS negotiation, authentication and message submission.
type SMTPError struct {
	Stage   string // Protocol stage that failed (e.g., "dial", "starttls", "auth", "rcpt")
	Address string // Recipient address of the delivery
	Code    int    // SMTP reply code, if the server sent one (0 otherwise)
	Err     error  // Underlying error, if any
}

func (e *SMTPError) Error() string {
	msg := fmt.Sprintf("smtp error during %s for %s", e.Stage, e.Address)
	if e.Code > 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SMTPError) Unwrap() error {
	return e.Err
}

// UnknownDeviceError is recorded for a device label whose identifier has no
// configured address when strict device matching is enabled.
type UnknownDeviceError struct {
	Device string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device %q", e.Device)
}

// IsExpected reports whether err is one of the anticipated per-action failure
// kinds. Anything else fails the whole run.
func IsExpected(err error) bool {
	var ioErr *IOError
	var smtpErr *SMTPError
	var devErr *UnknownDeviceError

	return errors.As(err, &ioErr) || errors.As(err, &smtpErr) || errors.As(err, &devErr)
}
