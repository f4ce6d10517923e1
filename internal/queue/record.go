package queue

import "time"

// SequenceRecord is the unit flowing through the ingestion pipeline from
// the frame parser (C3), through the work queue (C5), to a worker (C6).
// Once enqueued its Sequence field is immutable and whitespace-free.
type SequenceRecord struct {
	// SeqID is the process-monotonic sequence id assigned at the
	// moment the record was accepted by the ingress layer.
	SeqID uint64

	// ID is the opaque textual identifier parsed from the wire; may be
	// empty.
	ID string

	// FormatHint is one of "raw", "fasta", "fastq" — reporting only,
	// never alters encoding.
	FormatHint string

	// Origin is a stable descriptor of the source: ip:port for
	// network records, a file path for the offline packer.
	Origin string

	// Sequence is the whitespace-stripped nucleotide bytes.
	Sequence []byte

	// ReceivedAt is assigned at the moment the record leaves the
	// parser.
	ReceivedAt time.Time

	// Quality is the optional FASTQ quality block; never written into
	// the 2-bit container.
	Quality []byte
}
