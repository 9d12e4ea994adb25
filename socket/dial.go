package socket

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultConnectTimeout bounds the connect phase. Once the connection
// is established the timeout is cleared: the declared size bounds every
// later read, so an indefinite block only occurs if the peer misbehaves.
const DefaultConnectTimeout = 10 * time.Second

// Dial connects to host:port with the default connect timeout and
// returns an established Session.
func Dial(host string, port int) (*Session, error) {
	return DialTimeout(host, port, DefaultConnectTimeout)
}

// DialTimeout connects to host:port with an explicit connect timeout.
// If timeout is 0, no timeout is applied.
func DialTimeout(host string, port int, timeout time.Duration) (*Session, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return DialContext(ctx, host, port)
}

// DialContext connects to host:port, honoring ctx for cancellation and
// deadline during the connect phase only. Deadlines are cleared on the
// established connection before the Session is returned.
func DialContext(ctx context.Context, host string, port int) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	logrus.WithFields(logrus.Fields{
		"function": "DialContext",
		"addr":     addr,
	}).Debug("Connecting to peer")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DialContext",
			"addr":     addr,
			"error":    err.Error(),
		}).Info("Connection failed")
		return nil, newError("dial", addr, err)
	}

	// Clear any inherited deadline so steady-state transfer reads block.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, newError("dial", addr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DialContext",
		"addr":        addr,
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Connected to server")

	return newSession(conn), nil
}
