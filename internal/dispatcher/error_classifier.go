package dispatcher

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/local/bookletizer/internal/filetype"
	"github.com/local/bookletizer/internal/imposition"
	"github.com/local/bookletizer/internal/source"
)

// classify wraps err in a JobError carrying the retry decision.
func classify(jobID string, attempt int, err error) *JobError {
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return &JobError{JobID: jobID, Attempt: attempt, Fatal: isFatalError(err), Err: err}
}

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Fatal
	}

	// Bad layout or a broken sequencing contract fails the same way every time
	if errors.Is(err, imposition.ErrConfig) || errors.Is(err, imposition.ErrPrecondition) {
		return true
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	var unsupported *filetype.UnsupportedError
	if errors.As(err, &unsupported) {
		return true
	}

	// Local source that does not exist, or a remote one over the cap
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, source.ErrTooLarge) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "http 404") ||
		strings.Contains(errStr, "nosuchkey") ||
		strings.Contains(errStr, "invalid s3 url") ||
		strings.Contains(errStr, "storage is not configured") ||
		strings.Contains(errStr, "no password is configured") ||
		strings.Contains(errStr, "gcm decryption failed") {
		return true
	}

	return false
}

// isTransientError checks if error is worth retrying quickly
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isTimeoutError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "http 5")
}

// isTimeoutError checks if error is specifically a timeout
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
