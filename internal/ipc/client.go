package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1broseidon/layerctl/internal/runtimepath"
)

// Client sends one-shot management requests to the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client. An empty socketPath uses the default.
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			// Keep constructor non-failing; sendRequest surfaces connection errors.
			socketPath = ""
		}
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	_, err := c.sendRequest(&Request{Command: CommandReload})
	return err
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetStatus})
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}

	return &status, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

// SessionConn is the client side of a control session.
type SessionConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	sessionID uint64

	writeMu sync.Mutex
}

// DialSession connects to the daemon and binds a control session. An empty
// socketPath uses the default.
func DialSession(socketPath string, timeout time.Duration) (*SessionConn, error) {
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}

	sc := &SessionConn{conn: conn, reader: bufio.NewReader(conn)}
	if err := sc.bind(timeout); err != nil {
		conn.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *SessionConn) bind(timeout time.Duration) error {
	if timeout > 0 {
		sc.conn.SetDeadline(time.Now().Add(timeout))
		defer sc.conn.SetDeadline(time.Time{})
	}
	if err := sc.Send(&Request{Command: CommandBind}); err != nil {
		return err
	}
	line, err := sc.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("failed to read bind response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("failed to parse bind response: %w", err)
	}
	if resp.Status != "OK" {
		return fmt.Errorf("daemon refused bind: %s", resp.Error)
	}
	var data BindData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse bind data: %w", err)
	}
	sc.sessionID = data.SessionID
	return nil
}

// SessionID is the id the daemon assigned to this session.
func (sc *SessionConn) SessionID() uint64 {
	return sc.sessionID
}

// Send writes one request. It is safe for concurrent use.
func (sc *SessionConn) Send(req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')

	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if _, err := sc.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// Recv blocks until the next event arrives. It must be called from a single
// goroutine.
func (sc *SessionConn) Recv() (*Event, error) {
	line, err := sc.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return ParseEvent(line)
}

// Close closes the connection, unblocking Recv.
func (sc *SessionConn) Close() error {
	return sc.conn.Close()
}
