// Package container implements the ingestion pipeline's binary container
// file format (§4.2): a multi-record archive with a fixed-size header and
// per-record metadata slots, plus the server's single-record textual
// sibling format used for per-record persistence.
package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/inchrosil/dnapipe/internal/pipeerr"
)

// BinaryMagic is the 8-byte magic identifying the binary multi-record
// container format.
const BinaryMagic = "INCHRSIL"

// TextMagic is the newline-terminated magic identifying the server's
// single-record textual sibling format. Readers distinguish the two
// formats by these first bytes.
const TextMagic = "INCHROSIL\n"

const (
	headerSize   = 64
	metaSlotSize = 280
	nameFieldLen = 256
	version      = uint32(1)
)

// Header is the 64-byte binary container header.
type Header struct {
	Version        uint32
	SequenceCount  uint64
	TotalBases     uint64
	CompressedSize uint64
}

// Record is one entry of a binary container: a named, already-packed
// payload of the given nucleotide length.
type Record struct {
	Name    string
	Length  uint64 // length_in_bases
	Payload []byte // packed, codec.PackedLen(Length) bytes
}

// WriteContainer writes the full binary container format to w: the
// header, the metadata block (one 280-byte slot per record, built in
// memory), then the payloads in metadata order. payload_offset for each
// record is the cumulative sum of the preceding payload lengths, per the
// write contract in §4.2.
func WriteContainer(w io.Writer, records []Record) error {
	var totalBases, compressedSize uint64
	for _, r := range records {
		totalBases += r.Length
		compressedSize += uint64(len(r.Payload))
	}

	bw := bufio.NewWriter(w)

	hdr := make([]byte, headerSize)
	copy(hdr[0:8], BinaryMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], version)
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(len(records)))
	binary.LittleEndian.PutUint64(hdr[20:28], totalBases)
	binary.LittleEndian.PutUint64(hdr[28:36], compressedSize)
	// bytes 36..64 are reserved, left zero.
	if _, err := bw.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var offset uint64
	for i, r := range records {
		slot := make([]byte, metaSlotSize)
		binary.LittleEndian.PutUint64(slot[0:8], r.Length)
		binary.LittleEndian.PutUint64(slot[8:16], offset)
		if len(r.Name) >= nameFieldLen {
			return fmt.Errorf("record %d: name too long for 256-byte field", i)
		}
		copy(slot[16:16+len(r.Name)], r.Name)
		// byte 16+255 stays zero, enforcing the zero-terminator.
		if _, err := bw.Write(slot); err != nil {
			return fmt.Errorf("write metadata slot %d: %w", i, err)
		}
		offset += uint64(len(r.Payload))
	}

	for i, r := range records {
		if _, err := bw.Write(r.Payload); err != nil {
			return fmt.Errorf("write payload %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// ReadContainer validates the binary container header and reads every
// metadata slot and payload. On any shortfall it returns an error
// wrapping pipeerr.ErrCorruptContainer naming the offending record index.
func ReadContainer(r io.ReadSeeker) (*Header, []Record, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, nil, pipeerr.New("read-header", "", 0, pipeerr.ErrCorruptContainer)
	}

	if string(hdr[0:8]) != BinaryMagic {
		return nil, nil, pipeerr.New("read-header", "", 0, pipeerr.ErrCorruptContainer)
	}

	h := &Header{
		Version:        binary.LittleEndian.Uint32(hdr[8:12]),
		SequenceCount:  binary.LittleEndian.Uint64(hdr[12:20]),
		TotalBases:     binary.LittleEndian.Uint64(hdr[20:28]),
		CompressedSize: binary.LittleEndian.Uint64(hdr[28:36]),
	}
	if h.Version != version {
		return nil, nil, pipeerr.New("read-header", "", 0, pipeerr.ErrCorruptContainer)
	}

	type slot struct {
		length uint64
		offset uint64
		name   string
	}
	slots := make([]slot, h.SequenceCount)
	for i := range slots {
		buf := make([]byte, metaSlotSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, pipeerr.New(fmt.Sprintf("read-meta[%d]", i), "", uint64(i), pipeerr.ErrCorruptContainer)
		}
		length := binary.LittleEndian.Uint64(buf[0:8])
		offset := binary.LittleEndian.Uint64(buf[8:16])
		name := nullTerminatedString(buf[16 : 16+nameFieldLen])
		slots[i] = slot{length: length, offset: offset, name: name}
	}

	metaEnd, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, nil, pipeerr.New("read-meta", "", 0, pipeerr.ErrCorruptContainer)
	}

	records := make([]Record, h.SequenceCount)
	for i, s := range slots {
		if _, err := r.Seek(metaEnd+int64(s.offset), io.SeekStart); err != nil {
			return nil, nil, pipeerr.New(fmt.Sprintf("read-payload[%d]", i), "", uint64(i), pipeerr.ErrCorruptContainer)
		}
		packedLen := (s.length + 3) / 4
		payload := make([]byte, packedLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, pipeerr.New(fmt.Sprintf("read-payload[%d]", i), "", uint64(i), pipeerr.ErrCorruptContainer)
		}
		records[i] = Record{Name: s.name, Length: s.length, Payload: payload}
	}

	return h, records, nil
}

// nullTerminatedString trims a fixed-size, zero-padded name field at its
// first zero byte.
func nullTerminatedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ServerRecord is the server's single-record persistence format: a
// debug-friendly ASCII header followed by the raw packed payload.
type ServerRecord struct {
	ID        string
	Client    string
	Format    string
	Length    uint64
	Checksum  uint32
	Timestamp time.Time
	Payload   []byte
}

// WriteServerRecord writes the textual single-record variant: the
// `INCHROSIL\n` magic, an ASCII header block, a `---\n` separator, then
// the raw packed payload.
func WriteServerRecord(w io.Writer, rec ServerRecord) error {
	header := fmt.Sprintf(
		"%sID: %s\nClient: %s\nFormat: %s\nLength: %d\nChecksum: 0x%08X\nTimestamp: %s\n---\n",
		TextMagic, rec.ID, rec.Client, rec.Format, rec.Length, rec.Checksum,
		rec.Timestamp.UTC().Format(time.RFC3339),
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write server record header: %w", err)
	}
	if _, err := w.Write(rec.Payload); err != nil {
		return fmt.Errorf("write server record payload: %w", err)
	}
	return nil
}

// ReadServerRecord parses the textual single-record variant from r. The
// caller must have already confirmed the TextMagic prefix, or pass a
// reader positioned at the start of the record (ReadServerRecord itself
// also validates the magic).
func ReadServerRecord(r *bufio.Reader) (*ServerRecord, error) {
	magic := make([]byte, len(TextMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != TextMagic {
		return nil, pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
	}

	rec := &ServerRecord{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
		}
		if line == "---\n" {
			break
		}
		if err := parseServerRecordLine(rec, line); err != nil {
			return nil, err
		}
	}

	packedLen := (rec.Length + 3) / 4
	payload := make([]byte, packedLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
	}
	rec.Payload = payload

	return rec, nil
}

func parseServerRecordLine(rec *ServerRecord, line string) error {
	line = trimNewline(line)
	key, val, ok := splitOnce(line, ": ")
	if !ok {
		return nil
	}
	switch key {
	case "ID":
		rec.ID = val
	case "Client":
		rec.Client = val
	case "Format":
		rec.Format = val
	case "Length":
		var n uint64
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
		}
		rec.Length = n
	case "Checksum":
		var n uint32
		if _, err := fmt.Sscanf(val, "0x%08X", &n); err != nil {
			return pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
		}
		rec.Checksum = n
	case "Timestamp":
		ts, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return pipeerr.New("read-server-record", "", 0, pipeerr.ErrCorruptContainer)
		}
		rec.Timestamp = ts
	}
	return nil
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}

func splitOnce(s, sep string) (string, string, bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

// IsBinary reports whether the given peeked prefix bytes identify a
// binary container (BinaryMagic) rather than the textual server record
// format (TextMagic).
func IsBinary(peek []byte) bool {
	return len(peek) >= 8 && string(peek[:8]) == BinaryMagic
}
