package database

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
)

// PermanentError wraps a write failure that retrying cannot fix: either
// the store rejected the data outright, or the retry budget is exhausted.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent write failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// isTransient classifies a write error as worth retrying. Connection
// resets, pool/connection exhaustion and serialization conflicts are
// transient; constraint violations, malformed data and authentication
// failures are not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		// Class 08: connection exceptions
		if pqErr.Code.Class() == "08" {
			return true
		}
	}

	return false
}
