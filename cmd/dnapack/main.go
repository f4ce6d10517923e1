// Command dnapack packs a FASTA file into the ingestion pipeline's
// binary multi-record container format, offline, with no server
// involved.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/inchrosil/dnapipe/internal/cli/output"
	"github.com/inchrosil/dnapipe/internal/codec"
	"github.com/inchrosil/dnapipe/internal/container"
	"github.com/spf13/cobra"
)

var outPath string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dnapack <fasta-file>",
		Short: "pack a FASTA file into a binary DNA container",
		Args:  cobra.ExactArgs(1),
		RunE:  runPack,
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output container path (default: <input>.ich)")
	cmd.SilenceUsage = true
	return cmd
}

func runPack(cmd *cobra.Command, args []string) error {
	inPath := args[0]
	if outPath == "" {
		outPath = strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ".ich"
	}

	records, err := readFasta(inPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("dnapack: no records found in %s", inPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("dnapack: create %s: %w", outPath, err)
	}
	defer out.Close()

	if err := container.WriteContainer(out, records); err != nil {
		return fmt.Errorf("dnapack: write container: %w", err)
	}

	return printSummary(records, outPath)
}

func readFasta(path string) ([]container.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dnapack: open %s: %w", path, err)
	}
	defer f.Close()

	var (
		records []container.Record
		name    string
		seq     strings.Builder
		have    bool
	)

	flush := func() {
		if !have {
			return
		}
		s := seq.String()
		records = append(records, container.Record{
			Name:    name,
			Length:  uint64(len(s)),
			Payload: codec.Encode([]byte(s)),
		})
		seq.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ">"):
			flush()
			name = firstField(strings.TrimPrefix(line, ">"))
			have = true
		case strings.TrimSpace(line) == "":
			continue
		default:
			seq.WriteString(strings.ToUpper(strings.TrimSpace(line)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dnapack: read %s: %w", path, err)
	}
	flush()

	return records, nil
}

// firstField returns the first whitespace-separated token in s, which
// may be empty (a bare ">" header line is valid FASTA).
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func printSummary(records []container.Record, outPath string) error {
	var totalBases, compressedSize uint64
	table := output.NewTableData("Name", "Length (bases)", "Packed (bytes)")
	for _, r := range records {
		totalBases += r.Length
		compressedSize += uint64(len(r.Payload))
		table.AddRow(r.Name, strconv.FormatUint(r.Length, 10), strconv.Itoa(len(r.Payload)))
	}
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return fmt.Errorf("dnapack: print summary: %w", err)
	}

	fmt.Printf("\nwrote %s: sequence_count=%d total_bases=%s compressed_size=%s\n",
		outPath, len(records), humanize.Comma(int64(totalBases)), humanize.Bytes(compressedSize))
	return nil
}
