package sdlkit

import (
	"context"
	"time"

	"github.com/opd-ai/sdlkit/socket"
	"github.com/opd-ai/sdlkit/transfer"
)

// Options configures one transfer session.
type Options struct {
	// ConnectTimeout bounds the connect phase only.
	ConnectTimeout time.Duration
	// ReadTimeout, when non-zero, is armed before every header and body
	// read so a stalled peer cannot block a worker indefinitely.
	ReadTimeout time.Duration
	// ChunkSize bounds each body read.
	ChunkSize int
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		ConnectTimeout: socket.DefaultConnectTimeout,
		ChunkSize:      transfer.DefaultChunkSize,
	}
}

// SendFile connects to host:port and transmits one file. The session
// lives only for this call. No retry happens here; callers that want
// retry wrap the whole call in a retry.Policy, since a partially sent
// header cannot be resumed.
func SendFile(ctx context.Context, host string, port int, name string, body []byte, opts *Options) error {
	if opts == nil {
		opts = NewOptions()
	}

	dialCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	session, err := socket.DialContext(dialCtx, host, port)
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.ReadTimeout > 0 {
		session.SetReadTimeout(opts.ReadTimeout)
	}

	return transfer.NewSender(session).Send(name, body)
}

// ReceiveFile decodes one file from an established session. The caller
// keeps ownership of the session.
func ReceiveFile(session *socket.Session, opts *Options) (string, []byte, error) {
	if opts == nil {
		opts = NewOptions()
	}

	if opts.ReadTimeout > 0 {
		session.SetReadTimeout(opts.ReadTimeout)
	}

	receiver := transfer.NewReceiver(session)
	receiver.SetChunkSize(opts.ChunkSize)
	return receiver.Receive()
}

// ServeOnce accepts a single connection on the listener, receives one
// file and closes the session. It is the receiver-side counterpart of
// SendFile for the one-file-per-connection protocol.
func ServeOnce(ln *socket.Listener, opts *Options) (string, []byte, error) {
	session, err := ln.Accept()
	if err != nil {
		return "", nil, err
	}
	defer session.Close()

	return ReceiveFile(session, opts)
}
