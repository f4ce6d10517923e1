// Package frame implements the ingestion pipeline's streaming line
// parser (§4.3): it turns an arbitrary, possibly chunked byte stream
// into a lazy sequence of records, detecting FASTA, FASTQ, and raw
// framing per line.
package frame

import "bytes"

// Record is one emitted sequence record: a whitespace-stripped
// nucleotide sequence plus its id (when known) and observed format.
type Record struct {
	ID         string
	Sequence   []byte
	FormatHint string // "raw", "fasta", "fastq"
}

type state int

const (
	stateNone state = iota
	stateFasta
	stateFastqSeq  // just saw '@id'; next line is the sequence
	stateFastqPlus // have sequence; next line is skipped (expected '+')
	stateFastqQual // have sequence and skipped plus-line; next line is quality
)

// Parser accumulates bytes across Feed calls and emits complete records
// as soon as their framing closes. It is not safe for concurrent use;
// the ingress server owns one Parser per connection.
type Parser struct {
	buf []byte
	st  state
	id  string
	seq []byte
}

// NewParser returns a Parser ready to accept bytes via Feed.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends data to the parser's buffer and returns every record
// whose framing completed as a result. Feeding the same bytes one at a
// time versus in one call must emit an identical record sequence.
func (p *Parser) Feed(data []byte) []Record {
	p.buf = append(p.buf, data...)

	var out []Record
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]
		out = append(out, p.processLine(line)...)
	}
	return out
}

// Close signals end-of-stream: any leftover unterminated line is
// processed as a final line, and any accumulated FASTA/FASTQ context is
// flushed as a final record.
func (p *Parser) Close() []Record {
	var out []Record
	if len(p.buf) > 0 {
		line := p.buf
		p.buf = nil
		out = append(out, p.processLine(line)...)
	}
	out = append(out, p.flush()...)
	return out
}

// flush emits whatever FASTA/FASTQ context remains open at end-of-stream.
func (p *Parser) flush() []Record {
	switch p.st {
	case stateFasta:
		rec := Record{ID: p.id, Sequence: p.seq, FormatHint: "fasta"}
		p.st = stateNone
		p.seq = nil
		return []Record{rec}
	case stateFastqSeq, stateFastqPlus, stateFastqQual:
		// Missing quality at stream end: emit as FASTA, downgraded.
		rec := Record{ID: p.id, Sequence: p.seq, FormatHint: "fasta"}
		p.st = stateNone
		p.seq = nil
		return []Record{rec}
	default:
		return nil
	}
}

// processLine handles one newline-delimited, \r-stripped line and
// returns zero or more records it causes to be emitted (opening a new
// FASTA/FASTQ header while one is already active emits the prior one).
func (p *Parser) processLine(line []byte) []Record {
	line = stripCR(line)

	if len(line) == 0 {
		return nil
	}

	// Positional FASTQ states consume the next non-empty line regardless
	// of its content (empty lines were skipped above), per §4.3.
	switch p.st {
	case stateFastqSeq:
		p.seq = stripWhitespace(line)
		p.st = stateFastqPlus
		return nil
	case stateFastqPlus:
		p.st = stateFastqQual
		return nil
	case stateFastqQual:
		rec := Record{ID: p.id, Sequence: p.seq, FormatHint: "fastq"}
		p.st = stateNone
		p.seq = nil
		return []Record{rec}
	}

	switch line[0] {
	case '>':
		var out []Record
		if p.st == stateFasta {
			out = append(out, Record{ID: p.id, Sequence: p.seq, FormatHint: "fasta"})
		}
		p.id = firstToken(line[1:])
		p.st = stateFasta
		p.seq = nil
		return out
	case '@':
		var out []Record
		if p.st == stateFasta {
			out = append(out, Record{ID: p.id, Sequence: p.seq, FormatHint: "fasta"})
		}
		p.id = firstToken(line[1:])
		p.st = stateFastqSeq
		p.seq = nil
		return out
	case '+':
		// A lone '+' with no active FASTQ context is ambiguous; drop it.
		return nil
	default:
		if p.st == stateFasta {
			p.seq = append(p.seq, stripWhitespace(line)...)
			return nil
		}
		return []Record{{ID: "", Sequence: stripWhitespace(line), FormatHint: "raw"}}
	}
}

// stripCR removes a single trailing carriage return, if present.
func stripCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// stripWhitespace removes every ASCII whitespace byte from line,
// returning a freshly allocated slice.
func stripWhitespace(line []byte) []byte {
	out := make([]byte, 0, len(line))
	for _, c := range line {
		if isSpace(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	default:
		return false
	}
}

// firstToken returns the first whitespace-separated token in line,
// which may be empty.
func firstToken(line []byte) string {
	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	j := i
	for j < len(line) && !isSpace(line[j]) {
		j++
	}
	return string(line[i:j])
}
