// Package ingress implements the ingestion pipeline's TCP server (C7):
// an accept loop that spawns a per-connection reader, each owning a
// receive buffer and a frame parser. Every parsed record takes the next
// value of one global sequence-id counter as it is enqueued.
package ingress

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/inchrosil/dnapipe/internal/dlog"
	"github.com/inchrosil/dnapipe/internal/dnametrics"
	"github.com/inchrosil/dnapipe/internal/frame"
	"github.com/inchrosil/dnapipe/internal/queue"
	"github.com/inchrosil/dnapipe/pkg/bufpool"
)

// Config groups the ingress server's tunables; see SPEC_FULL.md §4.7.
type Config struct {
	Port            int
	RecvChunk       int
	MaxClients      int
	MaxSeqLen       int64
	ShutdownTimeout time.Duration
}

// Server accepts TCP connections and feeds parsed sequence records into
// a shared work queue. Server.Serve should be called exactly once.
type Server struct {
	cfg     Config
	queue   *queue.Queue
	metrics *dnametrics.Metrics

	listener   net.Listener
	listenerMu sync.RWMutex

	nextSeqID atomic.Uint64

	activeConns sync.WaitGroup
	connCount   atomic.Int32
	conns       sync.Map // remote addr -> net.Conn

	shutdownOnce sync.Once
	shutdown     chan struct{}

	listenerReady chan struct{}
}

// New creates a Server bound to no socket yet. Call Serve to start
// accepting connections.
func New(cfg Config, q *queue.Queue, metrics *dnametrics.Metrics) *Server {
	return &Server{
		cfg:           cfg,
		queue:         q,
		metrics:       metrics,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve binds the configured port and accepts connections until ctx is
// cancelled, at which point it drives graceful shutdown: the listener
// is closed, every live connection is closed, and the work queue is
// closed. Serve waits up to ShutdownTimeout for the reader goroutines
// to exit; connections still open after that are force-closed and Serve
// returns an error without waiting further.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		close(s.listenerReady)
		return fmt.Errorf("ingress: listen on port %d: %w", s.cfg.Port, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	dlog.Info("ingress server listening", dlog.KeyPath, listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.waitForConns()
			default:
				dlog.Debug("accept error", dlog.Err(err))
				continue
			}
		}

		current := s.connCount.Add(1)
		if s.cfg.MaxClients > 0 && int(current) > s.cfg.MaxClients {
			s.connCount.Add(-1)
			dlog.Warn("connection rejected: over MAX_CLIENTS", dlog.ClientIP(conn.RemoteAddr().String()))
			if s.metrics != nil {
				s.metrics.IncConnectionsRejected()
			}
			conn.Close()
			continue
		}

		if s.metrics != nil {
			s.metrics.IncConnectionsAccepted()
			s.metrics.SetActiveConnections(int(current))
		}

		addr := conn.RemoteAddr().String()
		s.conns.Store(addr, conn)
		s.activeConns.Add(1)

		go func() {
			defer func() {
				s.conns.Delete(addr)
				s.activeConns.Done()
				n := s.connCount.Add(-1)
				if s.metrics != nil {
					s.metrics.SetActiveConnections(int(n))
				}
			}()
			s.handleConnection(conn, addr)
		}()
	}
}

// initiateShutdown closes the listener and every live connection
// exactly once, then closes the work queue.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		dlog.Info("ingress shutdown initiated")
		close(s.shutdown)

		s.listenerMu.RLock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.listenerMu.RUnlock()

		s.conns.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				c.Close()
			}
			return true
		})

		s.queue.Close()
	})
}

// waitForConns waits for every reader goroutine to finish, up to
// ShutdownTimeout, force-closing any stragglers afterward.
func (s *Server) waitForConns() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case <-done:
		dlog.Info("ingress shutdown complete")
		return nil
	case <-time.After(timeout):
		remaining := s.connCount.Load()
		dlog.Warn("ingress shutdown timeout exceeded, forcing closure", "active", remaining)
		s.conns.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				c.Close()
			}
			return true
		})
		return fmt.Errorf("ingress: shutdown timeout, %d connections force-closed", remaining)
	}
}

// handleConnection owns the receive buffer, the frame parser, and the
// reader loop for a single accepted connection.
func (s *Server) handleConnection(conn net.Conn, origin string) {
	connID := uuid.NewString()
	defer conn.Close()

	dlog.Debug("connection accepted", dlog.ConnID(connID), dlog.ClientIP(origin))

	parser := frame.NewParser()
	chunkSize := s.cfg.RecvChunk
	if chunkSize <= 0 {
		chunkSize = 65536
	}

	for {
		buf := bufpool.Get(chunkSize)
		n, err := conn.Read(buf)
		if n > 0 {
			if s.metrics != nil {
				s.metrics.AddBytesReceived(n)
			}
			records := parser.Feed(buf[:n])
			s.enqueueAll(records, origin)
		}
		bufpool.Put(buf)

		if err != nil {
			break
		}
	}

	tail := parser.Close()
	s.enqueueAll(tail, origin)

	dlog.Debug("connection closed", dlog.ConnID(connID), dlog.ClientIP(origin))
}

// enqueueAll stamps each parsed record with its origin and the next
// global sequence id, then pushes it into the work queue. A Closed
// error from Push is tolerated: it only happens during shutdown, once
// the reader's own connection has already been force-closed.
func (s *Server) enqueueAll(records []frame.Record, origin string) {
	for _, r := range records {
		if s.cfg.MaxSeqLen > 0 && int64(len(r.Sequence)) > s.cfg.MaxSeqLen {
			if s.metrics != nil {
				s.metrics.IncParsingErrors()
			}
			dlog.Warn("record rejected: exceeds MAX_SEQ_LEN",
				dlog.Origin(origin), dlog.Length(len(r.Sequence)))
			continue
		}

		seqID := s.nextSeqID.Add(1)
		rec := queue.SequenceRecord{
			SeqID:      seqID,
			ID:         r.ID,
			FormatHint: r.FormatHint,
			Origin:     origin,
			Sequence:   r.Sequence,
			ReceivedAt: time.Now(),
		}

		if err := s.queue.Push(rec); err != nil {
			dlog.Debug("push after shutdown, dropping record", dlog.SeqID(seqID), dlog.Origin(origin), dlog.Err(err))
			return
		}
		if s.metrics != nil {
			s.metrics.SetQueueDepth(s.queue.Len())
		}
	}
}

// Addr blocks until the listener is bound, then returns its address.
// Empty string if Serve never successfully bound a socket.
func (s *Server) Addr() string {
	<-s.listenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the current accepted-connection count.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}
