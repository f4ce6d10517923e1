// Package client implements the ingestion pipeline's client driver (C8):
// a TCP sender that emits newline-delimited records in the on-wire
// framing that C3 parses, in one of three modes: send-file,
// send-interactive, send-stress.
package client

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/inchrosil/dnapipe/internal/dlog"
)

// State is the client run's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSending
	StateClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateSending:
		return "Sending"
	case StateClosing:
		return "Closing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Client drives a single TCP session against the ingestion server.
type Client struct {
	addr  string
	conn  net.Conn
	state State

	RecordsSent int
	BytesSent   int64
}

// Dial connects to host:port, moving through
// Disconnected -> Connecting -> Connected.
func Dial(host string, port int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	c := &Client{addr: addr, state: StateConnecting}

	dlog.Debug("client connecting", dlog.KeyPath, addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		c.state = StateClosing
		return nil, fmt.Errorf("client: connect %s: %w", addr, err)
	}

	c.conn = conn
	c.state = StateConnected
	return c, nil
}

// Close transitions Closing -> Done and releases the socket.
func (c *Client) Close() error {
	c.state = StateClosing
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.state = StateDone
	return err
}

// sendLine writes one newline-terminated line, moving into the
// Sending state on the first call.
func (c *Client) sendLine(line string) error {
	c.state = StateSending
	n, err := io.WriteString(c.conn, line)
	c.BytesSent += int64(n)
	if err != nil {
		c.state = StateClosing
		return fmt.Errorf("client: send: %w", err)
	}
	c.RecordsSent++
	return nil
}

// SendRaw emits a whitespace-stripped nucleotide line as a raw record.
func (c *Client) SendRaw(seq string) error {
	return c.sendLine(seq + "\n")
}

// SendFasta emits a FASTA record: a header line followed by the
// sequence body on its own line.
func (c *Client) SendFasta(id, seq string) error {
	return c.sendLine(fmt.Sprintf(">%s\n%s\n", id, seq))
}

// SendFastq emits a FASTQ record: header, sequence, a bare '+', then a
// quality line. When quality is empty a synthetic all-'I' string of the
// same length as seq is substituted.
func (c *Client) SendFastq(id, seq, quality string) error {
	if quality == "" {
		quality = strings.Repeat("I", len(seq))
	}
	return c.sendLine(fmt.Sprintf("@%s\n%s\n+\n%s\n", id, seq, quality))
}

// SendFile reads path line by line, reassembling FASTA/FASTQ/raw
// records using the same per-line recognition rules C3 applies on
// read, and emits each reassembled record as a framed message.
func (c *Client) SendFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("client: open %s: %w", path, err)
	}
	defer f.Close()

	var (
		pendingID  string
		pendingSeq strings.Builder
		inFasta    bool
	)

	flushFasta := func() error {
		if !inFasta {
			return nil
		}
		inFasta = false
		seq := pendingSeq.String()
		pendingSeq.Reset()
		return c.SendFasta(pendingID, seq)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ">"):
			if err := flushFasta(); err != nil {
				return err
			}
			pendingID = firstField(strings.TrimPrefix(line, ">"))
			inFasta = true
		case strings.HasPrefix(line, "@"):
			if err := flushFasta(); err != nil {
				return err
			}
			id := firstField(strings.TrimPrefix(line, "@"))
			var rest [3]string // sequence, '+' separator, quality; empty lines skipped
			for i := 0; i < len(rest) && scanner.Scan(); {
				if rest[i] = strings.TrimSpace(scanner.Text()); rest[i] != "" {
					i++
				}
			}
			if err := c.SendFastq(id, rest[0], rest[2]); err != nil {
				return err
			}
		case strings.HasPrefix(line, "+"): // a '+' outside a FASTQ record is dropped
		case inFasta:
			pendingSeq.WriteString(strings.TrimSpace(line))
		case strings.TrimSpace(line) == "":
			// skip
		default:
			if err := c.SendRaw(strings.TrimSpace(line)); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("client: read %s: %w", path, err)
	}
	return flushFasta()
}

// SendInteractive reads lines from in, sending each non-empty,
// whitespace-stripped line as a raw record. "quit", "exit", or "q"
// (case-insensitive) terminates the loop.
func (c *Client) SendInteractive(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}
		if err := c.SendRaw(line); err != nil {
			return err
		}
		fmt.Fprintf(out, "sent record %d (%d bytes)\n", c.RecordsSent, len(line))
	}
	return scanner.Err()
}

const stressAlphabet = "ACGT"

// SendStress emits n records of length l of uniformly-random
// nucleotides from {A, C, G, T}.
func (c *Client) SendStress(n, l int, rnd *rand.Rand) error {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	buf := make([]byte, l)
	for i := 0; i < n; i++ {
		for j := range buf {
			buf[j] = stressAlphabet[rnd.Intn(len(stressAlphabet))]
		}
		if err := c.SendRaw(string(buf)); err != nil {
			return err
		}
	}
	return nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() State { return c.state }

// firstField returns the first whitespace-separated token in s, which
// may be empty (a bare ">" header line is valid FASTA).
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
