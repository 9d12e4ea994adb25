package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ErrConnectionLost indicates the peer closed or reset the connection
// before the declared byte count was satisfied.
var ErrConnectionLost = errors.New("connection lost before transfer completed")

// TransferState represents the current phase of a file transfer.
type TransferState uint8

const (
	// StateConnected indicates the session is established and no header
	// field has been exchanged yet.
	StateConnected TransferState = iota
	// StateNameExchanged indicates the file name frame has been exchanged.
	StateNameExchanged
	// StateSizeExchanged indicates the file size frame has been exchanged.
	StateSizeExchanged
	// StateBodyTransferred indicates the full body has moved.
	StateBodyTransferred
	// StateDone indicates the transfer finished successfully.
	StateDone
	// StateError indicates the transfer aborted in place.
	StateError
)

// String returns a human-readable state name for logs.
func (s TransferState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateNameExchanged:
		return "name_exchanged"
	case StateSizeExchanged:
		return "size_exchanged"
	case StateBodyTransferred:
		return "body_transferred"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// DefaultChunkSize is the body chunk size used when a caller does not
// choose one.
const DefaultChunkSize = 4096

// maxBodyPrealloc caps the buffer capacity reserved from the declared
// size, so a bogus multi-gigabyte size line cannot allocate memory
// before any body byte arrives. The buffer still grows to the full
// declared size as bytes come in.
const maxBodyPrealloc = 4 << 20

// ConnectionLostError reports a connection loss mid-body, carrying the
// byte counts so the caller can observe exactly how far the transfer got.
//
// Err holds the underlying read error when one was reported, so a
// read-deadline expiry stays distinguishable from a peer close: a
// timeout armed via Session.SetReadTimeout surfaces here and remains
// reachable through errors.As. Err is nil when the peer simply closed.
type ConnectionLostError struct {
	BytesReceived uint64
	Declared      uint64
	Err           error
}

func (e *ConnectionLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection lost after %d of %d bytes: %v", e.BytesReceived, e.Declared, e.Err)
	}
	return fmt.Sprintf("connection lost after %d of %d bytes", e.BytesReceived, e.Declared)
}

func (e *ConnectionLostError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConnectionLost, e.Err}
	}
	return []error{ErrConnectionLost}
}

// ReceiveBody reads exactly declaredSize bytes from r in chunks of at
// most chunkSize bytes. Partial reads are expected and handled; each
// iteration requests min(chunkSize, remaining) so bytes received never
// exceed the declared size.
//
// On a zero-byte read before the count is satisfied, ReceiveBody
// returns the bytes accumulated so far together with a
// *ConnectionLostError. The decoded body is identical for any chunk
// size.
func ReceiveBody(r io.Reader, chunkSize int, declaredSize uint64) ([]byte, error) {
	return receiveBody(r, chunkSize, declaredSize, nil)
}

func receiveBody(r io.Reader, chunkSize int, declaredSize uint64, progress func(uint64)) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	logrus.WithFields(logrus.Fields{
		"function":      "ReceiveBody",
		"declared_size": declaredSize,
		"chunk_size":    chunkSize,
	}).Info("Receiving file body")

	prealloc := declaredSize
	if prealloc > maxBodyPrealloc {
		prealloc = maxBodyPrealloc
	}
	received := make([]byte, 0, prealloc)
	var bytesReceived uint64

	for bytesReceived < declaredSize {
		want := uint64(chunkSize)
		if remaining := declaredSize - bytesReceived; remaining < want {
			want = remaining
		}

		chunk := make([]byte, want)
		n, err := r.Read(chunk)
		if n > 0 {
			received = append(received, chunk[:n]...)
			bytesReceived += uint64(n)
			if progress != nil {
				progress(bytesReceived)
			}
			continue
		}
		if err != nil || n == 0 {
			// A deadline expiry must stay distinguishable from a peer
			// close; io.EOF is the close itself, not a cause to carry.
			cause := err
			if cause == io.EOF {
				cause = nil
			}
			fields := logrus.Fields{
				"function":       "ReceiveBody",
				"bytes_received": bytesReceived,
				"declared_size":  declaredSize,
			}
			if cause != nil {
				fields["error"] = cause.Error()
			}
			logrus.WithFields(fields).Debug("Connection lost while receiving file body")
			return received, &ConnectionLostError{
				BytesReceived: bytesReceived,
				Declared:      declaredSize,
				Err:           cause,
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":       "ReceiveBody",
		"bytes_received": bytesReceived,
	}).Info("Received the entire file body")

	return received, nil
}
