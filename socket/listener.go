package socket

import (
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Listener accepts incoming connections and wraps each in a Session.
// One accepted Session carries one file transfer.
type Listener struct {
	ln net.Listener

	mu     sync.Mutex
	closed bool
}

// Listen opens a listener on the given TCP port on all interfaces.
func Listen(port int) (*Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, newError("listen", addr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"addr":     ln.Addr().String(),
	}).Info("Listening for transfer connections")

	return &Listener{ln: ln}, nil
}

// Accept blocks until a peer connects, returning an established Session.
func (l *Listener) Accept() (*Session, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil, newError("accept", l.ln.Addr().String(), ErrListenerClosed)
		}
		return nil, newError("accept", l.ln.Addr().String(), err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Accept",
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Accepted transfer connection")

	return newSession(conn), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener. Sessions already accepted are unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.ln.Close()
}
