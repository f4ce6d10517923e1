// Package pipeerr defines the ingestion pipeline's error taxonomy:
// sentinel errors for each failure kind, plus a context-carrying wrapper
// that keeps errors.Is/errors.As working through the wrap.
package pipeerr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per taxonomy entry in the ingestion pipeline
// specification's error handling design.
var (
	// ErrArgument indicates bad CLI flags or ports. Fatal to the CLI;
	// the caller prints usage and exits 1.
	ErrArgument = errors.New("argument error")

	// ErrConnect indicates a DNS/TCP connect failure on the client.
	// Fatal to the client run.
	ErrConnect = errors.New("connect failure")

	// ErrSend indicates a TCP send error on the client. Terminates the
	// client session.
	ErrSend = errors.New("send failure")

	// ErrBind indicates the server could not bind its listening port
	// (in use or insufficient permissions). Fatal to the server.
	ErrBind = errors.New("bind failure")

	// ErrClosed indicates the work queue (C5) is closed. Callers treat
	// this as a soft shutdown signal, not an error condition.
	ErrClosed = errors.New("queue closed")

	// ErrParsing indicates a record was too large or malformed on the
	// wire. The record is counted and dropped; processing continues.
	ErrParsing = errors.New("parsing error")

	// ErrValidation indicates a sequence byte outside {A,C,G,T,N}. The
	// record is counted and dropped; processing continues.
	ErrValidation = errors.New("validation error")

	// ErrStorage indicates an I/O failure while persisting a record.
	// The record is counted and dropped; the pipeline does not retry.
	ErrStorage = errors.New("storage error")

	// ErrCorruptContainer indicates a bad magic, version, or length
	// field when reading a container file. Fatal to the read operation.
	ErrCorruptContainer = errors.New("corrupt container")
)

// PipelineError wraps a sentinel error with the operational context
// needed to diagnose which record, worker, or connection it came from,
// while preserving errors.Is/errors.As compatibility with the sentinel.
//
// Example:
//
//	err := pipeerr.New("persist", "127.0.0.1:54321", seqID, pipeerr.ErrStorage)
//	errors.Is(err, pipeerr.ErrStorage) // true
type PipelineError struct {
	// Op names the sub-operation that failed: "validate", "checksum",
	// "encode", "persist", "parse", "bind", "connect", "send".
	Op string

	// Origin is the record or connection's origin descriptor
	// (ip:port for network records, file path for offline packing).
	Origin string

	// SeqID is the process-monotonic sequence id of the affected
	// record, or 0 when the error predates sequence assignment.
	SeqID uint64

	// Err is the wrapped sentinel error.
	Err error
}

// Error returns a human-readable description of the pipeline error.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s (origin=%s, seq_id=%d)", e.Op, e.Err, e.Origin, e.SeqID)
}

// Unwrap returns the underlying sentinel error, enabling errors.Is() and
// errors.As() to match through the PipelineError wrapping.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// New creates a PipelineError wrapping the given sentinel error with
// operational context.
func New(op, origin string, seqID uint64, err error) *PipelineError {
	return &PipelineError{
		Op:     op,
		Origin: origin,
		SeqID:  seqID,
		Err:    err,
	}
}
