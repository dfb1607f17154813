package ipc

import (
	"log/slog"
	"net"
	"sync"
)

// sessionQueue is how many events may wait for a slow client before the
// session is dropped.
const sessionQueue = 1024

// Peer is the dispatcher's view of a control session.
type Peer interface {
	ID() uint64
	PID() int
	// Send queues an event without blocking.
	Send(ev *Event) bool
}

// Session is the server side of one control connection.
type Session struct {
	id  uint64
	pid int

	conn      net.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func newSession(id uint64, conn net.Conn, log *slog.Logger) *Session {
	s := &Session{
		id:   id,
		pid:  peerPID(conn),
		conn: conn,
		out:  make(chan []byte, sessionQueue),
		done: make(chan struct{}),
		log:  log.With("session", id),
	}
	go s.writeLoop()
	return s
}

var _ Peer = (*Session)(nil)

func (s *Session) ID() uint64 { return s.id }

// PID is the pid of the connected process, or 0 if unknown.
func (s *Session) PID() int { return s.pid }

// Send queues an event without blocking. It reports false if the session is
// closed or its queue is full; a full queue closes the session.
func (s *Session) Send(ev *Event) bool {
	data, err := ev.Marshal()
	if err != nil {
		s.log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return false
	}
	data = append(data, '\n')

	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- data:
		return true
	default:
		s.log.Warn("session too slow, dropping", "queued", len(s.out))
		s.Close()
		return false
	}
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session and closes the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.out:
			if _, err := s.conn.Write(data); err != nil {
				s.log.Debug("session write failed", "error", err)
				s.Close()
				return
			}
		}
	}
}
