// Package logging carries the MemTable's minimal logging contract: enough
// to report flush start/complete/error diagnostics, nothing more.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger is the sink a MemTable reports flush diagnostics to. It is
// injected at construction (memtable.Options.Logger); a nil Logger is
// replaced by DefaultLogger in Options.EnsureDefaults.
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go standard library's log package.
type DefaultLogger struct{}

func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf logs then terminates the process. A MemTable never calls this
// itself (invariant violations go through status.AssertInvariant's panic
// instead) — it exists for callers that want a Logger capable of treating
// a reported WRITER_ERROR as fatal.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}
