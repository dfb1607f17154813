package ipc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/runtimepath"
)

// Dispatcher executes control session requests. Attach, Dispatch and Detach
// for one peer are called in order from that peer's connection goroutine.
type Dispatcher interface {
	Attach(p Peer)
	Dispatch(p Peer, req *Request)
	Detach(p Peer)
	Status() StatusData
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// SocketPath defaults to runtimepath.SocketPath().
	SocketPath string
	// ConfigPath is reloaded on RELOAD. Empty means the default path.
	ConfigPath string
	Dispatcher Dispatcher
	// ReloadChan receives the freshly loaded config after a RELOAD.
	ReloadChan chan<- *config.Config
	Logger     *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	configPath string
	listener   net.Listener
	dispatcher Dispatcher
	reloadChan chan<- *config.Config
	log        *slog.Logger
	startTime  time.Time

	nextSession atomic.Uint64

	mu           sync.Mutex
	shuttingDown bool
	sessions     map[uint64]*Session
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("ipc server requires a dispatcher")
	}
	socketPath := cfg.SocketPath
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		configPath: cfg.ConfigPath,
		dispatcher: cfg.Dispatcher,
		reloadChan: cfg.ReloadChan,
		log:        logger,
		startTime:  time.Now(),
		sessions:   make(map[uint64]*Session),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.shuttingDown
			s.mu.Unlock()
			if stopping {
				return
			}
			s.log.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection reads the first request and either answers it or turns
// the connection into a control session.
func (s *Server) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.log.Debug("IPC read error", "error", err)
		conn.Close()
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		conn.Close()
		return
	}

	if req.Command == CommandBind {
		s.serveSession(conn, reader)
		return
	}

	defer conn.Close()
	s.writeResponse(conn, s.handleCommand(req))
}

func (s *Server) serveSession(conn net.Conn, reader *bufio.Reader) {
	id := s.nextSession.Add(1)
	resp, _ := NewOKResponse(BindData{SessionID: id})
	if err := s.writeResponse(conn, resp); err != nil {
		conn.Close()
		return
	}

	sess := newSession(id, conn, s.log)
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		sess.Close()
		return
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info("control session bound", "session", id, "pid", sess.PID())
	s.dispatcher.Attach(sess)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if req, perr := ParseRequest(line); perr != nil {
				s.log.Warn("dropping malformed session request", "session", id, "error", perr)
			} else {
				s.dispatcher.Dispatch(sess, req)
			}
		}
		if err != nil {
			break
		}
	}

	s.dispatcher.Detach(sess)
	sess.Close()
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.log.Info("control session closed", "session", id)
}

// handleCommand processes a one-shot command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandSync, CommandCommit:
		return NewErrorResponse(fmt.Sprintf("%s requires a bound session", req.Command))
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")

	var (
		newCfg *config.Config
		err    error
	)
	if s.configPath != "" {
		newCfg, err = config.LoadFromPath(s.configPath)
	} else {
		newCfg, err = config.Load()
	}
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}

	// Notify the daemon without blocking
	select {
	case s.reloadChan <- newCfg:
	default:
	}

	log.Println("IPC: Config reloaded successfully")

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetStatus() *Response {
	status := s.dispatcher.Status()
	status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	status.DaemonRunning = true

	resp, err := NewOKResponse(status)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) error {
	data, err := resp.Marshal()
	if err != nil {
		s.log.Error("failed to marshal response", "error", err)
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

// Stop closes the listener and every open session.
func (s *Server) Stop() {
	s.mu.Lock()
	s.shuttingDown = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, sess := range sessions {
		sess.Close()
	}
	os.Remove(s.socketPath)
}
