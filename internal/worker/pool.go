// Package worker implements the ingestion pipeline's worker pool (C6):
// N workers that pop sequence records from the work queue and run them
// through validate, checksum, encode, and persist.
package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inchrosil/dnapipe/internal/checksum"
	"github.com/inchrosil/dnapipe/internal/codec"
	"github.com/inchrosil/dnapipe/internal/container"
	"github.com/inchrosil/dnapipe/internal/dlog"
	"github.com/inchrosil/dnapipe/internal/dnametrics"
	"github.com/inchrosil/dnapipe/internal/queue"
)

// validAlphabet reports whether every byte of seq is one of A, C, G, T,
// N (uppercase ASCII), returning the index of the first offending byte
// and false if one is found.
func validAlphabet(seq []byte) (int, bool) {
	for i, b := range seq {
		switch b {
		case 'A', 'C', 'G', 'T', 'N':
			continue
		default:
			return i, false
		}
	}
	return -1, true
}

// Pool runs W workers, each looping: pop a record from q; if the queue
// reports ShutdownNoMoreWork, exit; otherwise validate, checksum,
// encode, and persist the record. A worker never propagates an error
// out of its loop — failures are counted and logged, and the worker
// moves on to the next record.
type Pool struct {
	queue   *queue.Queue
	count   int
	outDir  string
	metrics *dnametrics.Metrics

	wg sync.WaitGroup
}

// New creates a worker pool of count workers draining q, persisting
// accepted records under outDir. metrics may be nil to disable metrics
// collection.
func New(q *queue.Queue, count int, outDir string, metrics *dnametrics.Metrics) *Pool {
	return &Pool{queue: q, count: count, outDir: outDir, metrics: metrics}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Wait blocks until every worker has exited, which happens once the
// queue is closed and drained.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		rec, ok := p.queue.Pop()
		if !ok {
			dlog.Debug("worker exiting, queue drained", dlog.KeyWorker, id)
			return
		}
		p.process(id, rec)
	}
}

// process runs validate -> checksum -> encode -> persist for a single
// record. Each stage's failure is counted and logged; the worker always
// returns to its loop afterward.
func (p *Pool) process(workerID int, rec queue.SequenceRecord) {
	if idx, ok := validAlphabet(rec.Sequence); !ok {
		p.metrics.IncValidationErrors()
		dlog.Warn("validation error: out-of-alphabet byte",
			dlog.SeqID(rec.SeqID), dlog.Origin(rec.Origin), dlog.Worker(workerID),
			"byte_index", idx, "byte", rec.Sequence[idx])
		return
	}

	sum := checksum.Sum(rec.Sequence)
	packed := codec.Encode(rec.Sequence)
	p.metrics.AddBytesProcessed(len(rec.Sequence))

	start := time.Now()
	if err := p.persist(rec, sum, packed); err != nil {
		p.metrics.IncStorageErrors()
		dlog.Error("storage error: persist failed",
			dlog.SeqID(rec.SeqID), dlog.Origin(rec.Origin), dlog.Worker(workerID), dlog.Err(err))
		return
	}
	p.metrics.ObservePersistDuration(time.Since(start))
	p.metrics.IncSequencesAccepted()

	dlog.Debug("record persisted",
		dlog.SeqID(rec.SeqID), dlog.Origin(rec.Origin), dlog.Worker(workerID),
		dlog.Length(len(rec.Sequence)), dlog.Checksum(fmt.Sprintf("%08x", sum)))
}

// persist writes the server single-record container variant to
// dna_output_<seq_id>.ich under the pool's output directory.
func (p *Pool) persist(rec queue.SequenceRecord, sum uint32, packed []byte) error {
	path := filepath.Join(p.outDir, fmt.Sprintf("dna_output_%d.ich", rec.SeqID))

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	srec := container.ServerRecord{
		ID:        fmt.Sprintf("%d", rec.SeqID),
		Client:    rec.Origin,
		Format:    rec.FormatHint,
		Length:    uint64(len(rec.Sequence)),
		Checksum:  sum,
		Timestamp: time.Now(),
		Payload:   packed,
	}
	if err := container.WriteServerRecord(f, srec); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	// Write-then-rename makes the file visible to readers only once
	// fully flushed, per the container format's lifecycle contract.
	return os.Rename(tmp, path)
}
