package transfer

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sdlkit/wire"
)

// Receiver drives one incoming file over an established session:
// name frame, size frame, then the chunked body read.
type Receiver struct {
	session   io.Reader
	id        string
	chunkSize int
	state     TransferState

	progressCallback func(uint64)
}

// NewReceiver creates a receiver bound to an established session using
// the default chunk size. The session is owned by the caller.
func NewReceiver(session io.Reader) *Receiver {
	return &Receiver{
		session:   session,
		id:        uuid.NewString(),
		chunkSize: DefaultChunkSize,
		state:     StateConnected,
	}
}

// SetChunkSize overrides the body chunk size. Values below one fall
// back to the default. The decoded body is identical for any chunk size.
func (r *Receiver) SetChunkSize(n int) {
	if n <= 0 {
		n = DefaultChunkSize
	}
	r.chunkSize = n
}

// OnProgress sets a callback invoked with the running byte count after
// every chunk. The count is non-decreasing and never exceeds the
// declared size.
func (r *Receiver) OnProgress(callback func(uint64)) {
	r.progressCallback = callback
}

// State returns the phase the receiver last completed or aborted in.
func (r *Receiver) State() TransferState {
	return r.state
}

// Receive decodes one file, returning its name and body.
//
// An empty name with a nil error means the peer legitimately sent an
// empty name field; a closed stream surfaces wire.ErrClosedBeforeDelimiter
// instead, so the two cases stay distinguishable. Any step failure
// aborts the machine in place with no automatic reconnect.
func (r *Receiver) Receive() (string, []byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "Receive",
		"transfer_id": r.id,
		"chunk_size":  r.chunkSize,
	}).Info("Starting file receive")

	name, err := wire.ReadLine(r.session)
	if err != nil {
		r.state = StateError
		return "", nil, fmt.Errorf("receive name: %w", err)
	}
	r.state = StateNameExchanged
	logrus.WithFields(logrus.Fields{
		"function":    "Receive",
		"transfer_id": r.id,
		"file_name":   name,
	}).Info("File name received")

	size, err := wire.ReadSize(r.session)
	if err != nil {
		r.state = StateError
		return name, nil, fmt.Errorf("receive size: %w", err)
	}
	r.state = StateSizeExchanged
	logrus.WithFields(logrus.Fields{
		"function":    "Receive",
		"transfer_id": r.id,
		"file_size":   size,
	}).Info("File size received")

	body, err := receiveBody(r.session, r.chunkSize, size, r.progressCallback)
	if err != nil {
		r.state = StateError
		return name, body, fmt.Errorf("receive body: %w", err)
	}
	r.state = StateBodyTransferred
	logrus.WithFields(logrus.Fields{
		"function":    "Receive",
		"transfer_id": r.id,
		"state":       r.state,
	}).Debug("File body read")

	r.state = StateDone
	logrus.WithFields(logrus.Fields{
		"function":    "Receive",
		"transfer_id": r.id,
		"file_name":   name,
		"file_size":   size,
		"state":       r.state,
	}).Info("File receive completed")

	return name, body, nil
}
