package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

var lookupEnv = os.Getenv

const (
	defaultConnTimeout              = 30 * time.Second
	maxRequestBytes                 = 64 * 1024 // limits request size to prevent memory exhaustion
	maxResponseBytes                = 256 * 1024
	defaultMaxConcurrentConnections = 16
	connSlotAcquireTimeout          = 5 * time.Second
)

// Server answers control requests, one JSON line in and one JSON line out
// per connection.
type Server struct {
	address  string
	executor Executor

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	started   bool
	wg        sync.WaitGroup
	connSlots chan struct{}
}

// NewServer constructs a Server. An empty address uses DefaultAddress("").
func NewServer(address string, executor Executor) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if address == "" {
		address = DefaultAddress("")
	}
	return &Server{
		address:   address,
		executor:  executor,
		ctx:       ctx,
		cancel:    cancel,
		connSlots: make(chan struct{}, defaultMaxConcurrentConnections),
	}
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.address
}

// Start begins listening. It fails if another process is already serving
// the address.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("control server already started")
	}
	if s.executor == nil {
		return errors.New("control server requires an executor")
	}

	listener, err := listen(s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}

	s.listener = listener
	s.started = true
	s.wg.Go(s.acceptLoop)
	slog.Debug("[DEBUG-IPC] control server listening", "address", s.address)
	return nil
}

// Stop closes the listener and waits for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			slog.Warn("[ipc] failed to close control listener during shutdown", "error", err)
		}
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	consecutiveErrors := 0
	for {
		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener == nil {
			return
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			consecutiveErrors++
			if consecutiveErrors > 10 {
				slog.Warn("[ipc] accept loop: repeated failures, possible permanent error", "error", err, "count", consecutiveErrors)
				time.Sleep(500 * time.Millisecond)
			} else {
				slog.Debug("[ipc] accept error", "error", err)
			}
			continue
		}
		consecutiveErrors = 0

		if !s.acquireConnectionSlot() {
			s.writeResponse(conn, ErrorResponse("server busy, try again later"))
			if closeErr := conn.Close(); closeErr != nil {
				slog.Debug("[ipc] failed to close rejected connection", "error", closeErr)
			}
			continue
		}

		s.wg.Go(func() {
			defer s.releaseConnectionSlot()
			s.handleConnection(conn)
		})
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		slog.Warn("[ipc] failed to set connection deadline", "error", err)
		return
	}

	reader := bufio.NewReaderSize(conn, maxRequestBytes+1)
	rawReq, err := readFrame(reader, maxRequestBytes)
	if errors.Is(err, io.EOF) {
		slog.Debug("[ipc] client disconnected without sending data")
		return
	}
	if err != nil {
		s.writeResponse(conn, ErrorResponse(fmt.Sprintf("invalid request: %v", err)))
		return
	}

	req, err := decodeRequest(rawReq)
	if err != nil {
		s.writeResponse(conn, ErrorResponse(fmt.Sprintf("invalid request: %v", err)))
		return
	}

	slog.Debug("[DEBUG-IPC] received control request", "command", req.Command, "args", req.Args)
	s.writeResponse(conn, s.execute(req))
}

// execute shields the accept loop from executor panics.
func (s *Server) execute(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] control executor recovered from panic", "command", req.Command, "panic", r)
			resp = ErrorResponse("internal error")
		}
	}()
	return s.executor.Execute(req)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	rawResp, err := encodeResponse(resp)
	if err != nil {
		slog.Warn("[ipc] failed to encode response", "error", err, "exitCode", resp.ExitCode)
		rawResp = []byte(`{"exit_code":1,"stderr":"internal encode error\n"}`)
	}
	if _, err := conn.Write(append(rawResp, '\n')); err != nil {
		slog.Debug("[ipc] failed to write response", "error", err)
	}
}

func (s *Server) acquireConnectionSlot() bool {
	timer := time.NewTimer(connSlotAcquireTimeout)
	defer timer.Stop()
	select {
	case s.connSlots <- struct{}{}:
		return true
	case <-timer.C:
		slog.Warn("[ipc] connection slot exhausted, rejecting client")
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) releaseConnectionSlot() {
	select {
	case <-s.connSlots:
	default:
		slog.Warn("[ipc] releaseConnectionSlot: no slot to release (possible double-release)")
	}
}

// readFrame reads one newline-terminated frame of at most maxBytes. A final
// frame without a delimiter is accepted at EOF.
func readFrame(reader *bufio.Reader, maxBytes int) ([]byte, error) {
	raw, err := reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("frame exceeds %d bytes", maxBytes)
	}
	if errors.Is(err, io.EOF) {
		if len(raw) == 0 {
			return nil, io.EOF
		}
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
