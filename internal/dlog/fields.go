package dlog

import "log/slog"

// Standard field keys for structured logging across the pipeline.
// Use these keys consistently across all log statements for log
// aggregation and querying.
const (
	KeyConnID    = "conn_id"    // per-connection correlation id (uuid)
	KeySeqID     = "seq_id"     // process-monotonic sequence id
	KeyOrigin    = "origin"     // record origin (ip:port or file path)
	KeyFormat    = "format"     // format hint: raw, fasta, fastq
	KeyClientIP  = "client_ip"  // client IP address
	KeyBytes     = "bytes"      // byte count
	KeyLength    = "length"     // nucleotide length
	KeyChecksum  = "checksum"   // CRC32 checksum, hex
	KeyPath      = "path"       // output file path
	KeyWorker    = "worker"     // worker index
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyOperation = "operation"
)

// ConnID returns a slog.Attr for the connection correlation id.
func ConnID(id string) slog.Attr { return slog.String(KeyConnID, id) }

// SeqID returns a slog.Attr for the process-monotonic sequence id.
func SeqID(id uint64) slog.Attr { return slog.Uint64(KeySeqID, id) }

// Origin returns a slog.Attr for a record's origin descriptor.
func Origin(o string) slog.Attr { return slog.String(KeyOrigin, o) }

// Format returns a slog.Attr for the observed wire format hint.
func Format(f string) slog.Attr { return slog.String(KeyFormat, f) }

// ClientIP returns a slog.Attr for the client IP address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// Length returns a slog.Attr for a nucleotide sequence length.
func Length(n int) slog.Attr { return slog.Int(KeyLength, n) }

// Checksum returns a slog.Attr for a hex-formatted CRC32 checksum.
func Checksum(hex string) slog.Attr { return slog.String(KeyChecksum, hex) }

// Path returns a slog.Attr for an output file path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Worker returns a slog.Attr for a worker index.
func Worker(i int) slog.Attr { return slog.Int(KeyWorker, i) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDuration, ms) }

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Operation returns a slog.Attr for a sub-operation name.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
