package worker

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inchrosil/dnapipe/internal/container"
	"github.com/inchrosil/dnapipe/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidAlphabet(t *testing.T) {
	_, ok := validAlphabet([]byte("ACGTN"))
	assert.True(t, ok)

	idx, ok := validAlphabet([]byte("ACGTX"))
	assert.False(t, ok)
	assert.Equal(t, 4, idx)
}

func TestPool_PersistsAcceptedRecord(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(4)
	p := New(q, 2, dir, nil)
	p.Start()

	require.NoError(t, q.Push(queue.SequenceRecord{
		SeqID:      42,
		ID:         "seq1",
		FormatHint: "fasta",
		Origin:     "127.0.0.1:5000",
		Sequence:   []byte("ACGTACGT"),
		ReceivedAt: time.Now(),
	}))
	q.Close()
	p.Wait()

	path := filepath.Join(dir, "dna_output_42.ich")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rec, err := container.ReadServerRecord(bufio.NewReader(f))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), rec.Length)
	assert.Equal(t, "127.0.0.1:5000", rec.Client)
}

func TestPool_SkipsInvalidAlphabetWithoutPersisting(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(4)
	p := New(q, 1, dir, nil)
	p.Start()

	require.NoError(t, q.Push(queue.SequenceRecord{
		SeqID:    1,
		Sequence: []byte("ACGTX"),
	}))
	q.Close()
	p.Wait()

	_, err := os.Stat(filepath.Join(dir, "dna_output_1.ich"))
	assert.True(t, os.IsNotExist(err))
}

func TestPool_ContinuesAfterFailureAndProcessesRemaining(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(8)
	p := New(q, 2, dir, nil)
	p.Start()

	require.NoError(t, q.Push(queue.SequenceRecord{SeqID: 1, Sequence: []byte("BADX")}))
	require.NoError(t, q.Push(queue.SequenceRecord{SeqID: 2, Sequence: []byte("ACGT")}))
	q.Close()
	p.Wait()

	_, err := os.Stat(filepath.Join(dir, "dna_output_1.ich"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "dna_output_2.ich"))
	assert.NoError(t, err)
}

func TestPool_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(4)
	p := New(q, 1, dir, nil)
	p.Start()

	require.NoError(t, q.Push(queue.SequenceRecord{SeqID: 99, Sequence: []byte("ACGT")}))
	q.Close()
	p.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
