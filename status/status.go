// Package status defines the error kinds a MemTable surfaces to its caller.
//
// Errors from the rowset writer are propagated verbatim (wrapped, not
// reclassified); errors from the arena are classified as memory-limit
// errors; comparator/index invariant violations are fatal and assert.
package status

import (
	"github.com/cockroachdb/errors"
)

// Sentinel marks. Callers test with errors.Is against these, never by
// string-matching a message.
var (
	// ErrMemLimitExceeded marks an error as originating from an arena
	// allocation that the parent memory tracker refused.
	ErrMemLimitExceeded = errors.New("memtable: memory limit exceeded")

	// ErrWriterError marks an error as originating from the downstream
	// rowset writer during flush.
	ErrWriterError = errors.New("memtable: rowset writer error")
)

// MemLimitExceeded wraps cause and marks it as a MEM_LIMIT_EXCEEDED status.
func MemLimitExceeded(cause error) error {
	return errors.Mark(errors.Wrap(cause, "arena allocation refused"), ErrMemLimitExceeded)
}

// WriterError wraps cause and marks it as a WRITER_ERROR status. The
// original status from the rowset writer is preserved as the cause chain,
// per spec: "errors from the rowset writer are propagated verbatim".
func WriterError(cause error) error {
	return errors.Mark(errors.Wrap(cause, "rowset writer"), ErrWriterError)
}

// IsMemLimitExceeded reports whether err is (or wraps) a MEM_LIMIT_EXCEEDED
// status.
func IsMemLimitExceeded(err error) bool {
	return errors.Is(err, ErrMemLimitExceeded)
}

// IsWriterError reports whether err is (or wraps) a WRITER_ERROR status.
func IsWriterError(err error) bool {
	return errors.Is(err, ErrWriterError)
}

// AssertInvariant panics with an assertion-failure error if cond is false.
// Used for INTERNAL errors: a bug in the comparator or index, never expected
// to trigger in correct code, and never recovered from internally — the
// caller is expected to crash and restart the producer, per spec §7.
func AssertInvariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
