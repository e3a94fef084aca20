// Package netx implements a dynamic TCP connection model: one
// persistent control connection per session plus any number of
// on-demand data connections, opened symmetrically by either side.
// The shape follows a plain pre-QUIC raw TCP transport and its
// accept-loop, generalized from a single fixed file transfer to
// arbitrary on-demand sub-streams.
package netx

import (
	"fmt"
	"net"

	"github.com/jend-sync/jend/internal/wire"
)

// Endpoint is the symmetric interface both the client and server side of
// a session implement: obtain a connection this side initiated, or
// obtain one the peer initiated.
type Endpoint interface {
	// GetConnection opens a new connection initiated by this side.
	GetConnection() (net.Conn, error)
	// WaitForConnection blocks until a connection initiated by the peer
	// is available.
	WaitForConnection() (net.Conn, error)
	// Control returns the long-lived control connection.
	Control() net.Conn
	// Close tears down the endpoint and its control connection.
	Close() error
}

// ClientEndpoint is used by the side that dials out to a known
// host:port address.
type ClientEndpoint struct {
	addr    string
	control net.Conn
	frames  *wire.FrameReader
}

// DialClient opens the control connection to addr and returns a ready
// ClientEndpoint.
func DialClient(addr string) (*ClientEndpoint, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netx: dial control connection: %w", err)
	}
	return &ClientEndpoint{
		addr:    addr,
		control: conn,
		frames:  wire.NewFrameReader(conn),
	}, nil
}

func (c *ClientEndpoint) Control() net.Conn { return c.control }

// GetConnection dials a fresh outward connection to the remote address.
func (c *ClientEndpoint) GetConnection() (net.Conn, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("netx: dial data connection: %w", err)
	}
	return conn, nil
}

// WaitForConnection blocks on the control connection for a NewConnection
// notification, then dials a fresh outward connection; the peer's
// Accept on its listener yields the matching socket.
func (c *ClientEndpoint) WaitForConnection() (net.Conn, error) {
	var msg wire.NewConnectionMsg
	if err := c.frames.ReadFrame(&msg); err != nil {
		return nil, fmt.Errorf("netx: waiting for NewConnection notice: %w", err)
	}
	if !msg.IsNewConnection() {
		return nil, fmt.Errorf("netx: expected NewConnection notice, got %+v", msg)
	}
	return c.GetConnection()
}

func (c *ClientEndpoint) Close() error {
	return c.control.Close()
}

// ServerEndpoint is used by the side that binds a listener and waits
// for a peer to dial in.
type ServerEndpoint struct {
	listener net.Listener
	control  net.Conn
}

// Listen binds a TCP listener on addr ("host:port", port may be "0" for
// an ephemeral port) and returns a ServerEndpoint. The control
// connection is not accepted here; AcceptControl accepts it.
func Listen(addr string) (*ServerEndpoint, net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("netx: listen: %w", err)
	}
	return &ServerEndpoint{listener: l}, l, nil
}

// AcceptControl accepts the first incoming connection and binds it as
// the control connection. Must be called once before GetConnection or
// WaitForConnection.
func (s *ServerEndpoint) AcceptControl() (net.Conn, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("netx: accept control connection: %w", err)
	}
	s.control = conn
	return conn, nil
}

func (s *ServerEndpoint) Control() net.Conn { return s.control }

// GetConnection writes a NewConnection notification on the control
// socket, then accepts the resulting incoming connection.
func (s *ServerEndpoint) GetConnection() (net.Conn, error) {
	if s.control == nil {
		return nil, fmt.Errorf("netx: control connection not established")
	}
	if err := writeNewConnection(s.control); err != nil {
		return nil, err
	}
	return s.listener.Accept()
}

// WaitForConnection simply accepts the next incoming connection.
func (s *ServerEndpoint) WaitForConnection() (net.Conn, error) {
	return s.listener.Accept()
}

func (s *ServerEndpoint) Close() error {
	if s.control != nil {
		s.control.Close()
	}
	return s.listener.Close()
}

func writeNewConnection(w net.Conn) error {
	msg := wire.NewNewConnectionMsg()
	data, err := marshalFrame(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
