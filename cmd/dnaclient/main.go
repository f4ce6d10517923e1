// Command dnaclient drives a TCP session against a dnaserver instance in
// one of three modes: send-file, send-interactive, or send-stress.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/inchrosil/dnapipe/internal/client"
	"github.com/spf13/cobra"
)

const defaultPort = 9090

var (
	filePath    string
	interactive bool
	stressCount int
	stressLen   int
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <host> [port]",
		Short: "send DNA sequence records to a dnaserver instance",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runClient,
	}
	cmd.Flags().StringVar(&filePath, "file", "", "send records read from a FASTA/FASTQ/raw file")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "read raw sequences from stdin, one per line, until quit/exit/q")
	cmd.Flags().IntVar(&stressCount, "stress", 0, "send this many randomly generated raw sequences")
	cmd.Flags().IntVar(&stressLen, "length", 1000, "nucleotide length of each stress-generated sequence")
	cmd.SilenceUsage = true
	return cmd
}

func runClient(cmd *cobra.Command, args []string) error {
	host := args[0]
	port := defaultPort
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("invalid port %q", args[1])
		}
		port = p
	}

	modes := 0
	for _, set := range []bool{filePath != "", interactive, stressCount > 0} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("choose at most one of --file, --interactive, --stress")
	}

	c, err := client.Dial(host, port)
	if err != nil {
		return err
	}
	defer c.Close()

	start := time.Now()

	switch {
	case filePath != "":
		err = c.SendFile(filePath)
	case interactive:
		err = c.SendInteractive(os.Stdin, os.Stdout)
	case stressCount > 0:
		err = c.SendStress(stressCount, stressLen, rand.New(rand.NewSource(time.Now().UnixNano())))
	default:
		err = c.SendRaw(defaultTestSequence)
	}
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	elapsed := time.Since(start)
	fmt.Printf("sent %d record(s), %s in %s\n", c.RecordsSent, humanize.Bytes(uint64(c.BytesSent)), elapsed.Round(time.Millisecond))
	return nil
}

const defaultTestSequence = "ACGTACGTACGTACGTACGTACGTACGTACGT"
