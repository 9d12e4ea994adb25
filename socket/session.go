package socket

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Session is one established stream connection carrying a single file
// transfer. It implements io.ReadWriteCloser so the framing codec and
// the transfer engine operate on it directly.
//
// A Session owns the underlying connection for the protocol's duration.
// Closing the session is the only cancellation mechanism: whichever
// phase is blocked observes a zero-byte read and surfaces it as a
// connection loss.
type Session struct {
	conn net.Conn

	mu          sync.Mutex
	closed      bool
	readTimeout time.Duration
}

// newSession wraps an established connection.
func newSession(conn net.Conn) *Session {
	return &Session{conn: conn}
}

// SetReadTimeout sets a deadline applied before every subsequent read.
// Zero disables the deadline, restoring fully blocking reads.
//
// The connect phase is the only phase with a built-in timeout; header
// and body reads block indefinitely unless a read timeout is set here.
func (s *Session) SetReadTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = d

	logrus.WithFields(logrus.Fields{
		"function":     "SetReadTimeout",
		"remote_addr":  s.conn.RemoteAddr().String(),
		"read_timeout": d,
	}).Debug("Session read timeout configured")
}

// Read reads from the connection, arming the per-read deadline first
// when one is configured.
func (s *Session) Read(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	timeout := s.readTimeout
	s.mu.Unlock()

	if closed {
		return 0, newError("read", s.conn.RemoteAddr().String(), ErrSessionClosed)
	}

	if timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, newError("read", s.conn.RemoteAddr().String(), err)
		}
	}

	return s.conn.Read(p)
}

// Write writes all of p to the connection.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return 0, newError("write", s.conn.RemoteAddr().String(), ErrSessionClosed)
	}

	return s.conn.Write(p)
}

// Close releases the underlying connection. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	logrus.WithFields(logrus.Fields{
		"function":    "Close",
		"remote_addr": s.conn.RemoteAddr().String(),
	}).Debug("Closing session")

	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}
