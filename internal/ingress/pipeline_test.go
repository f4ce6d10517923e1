package ingress

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/inchrosil/dnapipe/internal/checksum"
	"github.com/inchrosil/dnapipe/internal/client"
	"github.com/inchrosil/dnapipe/internal/codec"
	"github.com/inchrosil/dnapipe/internal/container"
	"github.com/inchrosil/dnapipe/internal/queue"
	"github.com/inchrosil/dnapipe/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipeline_ClientToPersistedContainer drives a real client connection
// through the ingress server, the work queue, and a worker pool, then
// reads back the persisted server record and checks it reconstructs the
// original sequence with a matching checksum.
func TestPipeline_ClientToPersistedContainer(t *testing.T) {
	outDir := t.TempDir()

	q := queue.New(16)
	srv := New(Config{RecvChunk: 4096, MaxClients: 16, MaxSeqLen: 1 << 20}, q, nil)
	pool := worker.New(q, 2, outDir, nil)
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)

	_, port := splitAddr(t, srv.Addr())
	c, err := client.Dial("127.0.0.1", port)
	require.NoError(t, err)

	require.NoError(t, c.SendFasta("sample1", "ACGTACGTNN"))
	require.NoError(t, c.Close())

	var paths []string
	require.Eventually(t, func() bool {
		matches, err := filepath.Glob(filepath.Join(outDir, "dna_output_*.ich"))
		require.NoError(t, err)
		paths = matches
		return len(matches) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()

	srec, err := container.ReadServerRecord(bufio.NewReader(f))
	require.NoError(t, err)

	got := codec.Decode(srec.Payload, int(srec.Length))
	assert.Equal(t, "ACGTACGTAA", string(got)) // N was coerced to A on encode
	assert.Equal(t, checksum.Sum([]byte("ACGTACGTNN")), srec.Checksum)
}

// TestPipeline_ContainerRoundTrip exercises the offline multi-record
// container format independent of the network path: two short
// sequences pack, write, and read back byte-for-byte.
func TestPipeline_ContainerRoundTrip(t *testing.T) {
	records := []container.Record{
		{Name: "seq1", Length: 4, Payload: codec.Encode([]byte("ACGT"))},
		{Name: "seq2", Length: 4, Payload: codec.Encode([]byte("TTTT"))},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.ich")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, container.WriteContainer(f, records))
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	hdr, got, err := container.ReadContainer(rf)
	require.NoError(t, err)

	assert.EqualValues(t, 2, hdr.SequenceCount)
	assert.EqualValues(t, 8, hdr.TotalBases)
	assert.EqualValues(t, 2, hdr.CompressedSize)

	require.Len(t, got, 2)
	assert.Equal(t, "ACGT", string(codec.Decode(got[0].Payload, int(got[0].Length))))
	assert.Equal(t, "TTTT", string(codec.Decode(got[1].Payload, int(got[1].Length))))
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
