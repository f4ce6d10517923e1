package ingress

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/inchrosil/dnapipe/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, cfg Config) (*Server, *queue.Queue, context.CancelFunc) {
	t.Helper()
	if cfg.Port == 0 {
		cfg.Port = 0 // ephemeral port
	}
	q := queue.New(64)
	srv := New(cfg, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	return srv, q, cancel
}

func TestServer_AcceptsAndParsesRawRecord(t *testing.T) {
	srv, q, cancel := startTestServer(t, Config{RecvChunk: 4096, MaxClients: 16})
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte("ACGTACGT\n"))
	require.NoError(t, err)
	conn.Close()

	rec, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "ACGTACGT", string(rec.Sequence))
	assert.Equal(t, "raw", rec.FormatHint)
	assert.NotZero(t, rec.SeqID)
}

func TestServer_AssignsIncreasingSeqIDs(t *testing.T) {
	srv, q, cancel := startTestServer(t, Config{RecvChunk: 4096, MaxClients: 16})
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte("AAAA\nCCCC\nGGGG\n"))
	require.NoError(t, err)
	conn.Close()

	var ids []uint64
	for i := 0; i < 3; i++ {
		rec, ok := q.Pop()
		require.True(t, ok)
		ids = append(ids, rec.SeqID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestServer_RejectsOverMaxClients(t *testing.T) {
	srv, _, cancel := startTestServer(t, Config{RecvChunk: 4096, MaxClients: 1})
	defer cancel()

	conn1, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn1.Close()

	require.Eventually(t, func() bool { return srv.ActiveConnections() >= 1 }, time.Second, 5*time.Millisecond)

	conn2, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn2.Close()

	buf := make([]byte, 1)
	conn2.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn2.Read(buf)
	assert.Equal(t, 0, n)
	assert.Error(t, err)
}

func TestServer_RejectsRecordOverMaxSeqLen(t *testing.T) {
	srv, q, cancel := startTestServer(t, Config{RecvChunk: 4096, MaxClients: 16, MaxSeqLen: 4})
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte("AAAAA\nCC\n"))
	require.NoError(t, err)
	conn.Close()

	rec, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "CC", string(rec.Sequence))
}

func TestServer_GracefulShutdownClosesQueue(t *testing.T) {
	srv, q, cancel := startTestServer(t, Config{RecvChunk: 4096, MaxClients: 16})

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	cancel()

	require.Eventually(t, func() bool { return q.Closed() }, time.Second, 5*time.Millisecond)
	_ = srv
}
