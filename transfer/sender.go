package transfer

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sdlkit/wire"
)

// Sender drives one outgoing file over an established session:
// name frame, size frame, then the raw body.
type Sender struct {
	session io.Writer
	id      string
	state   TransferState
}

// NewSender creates a sender bound to an established session. The
// session is owned by the caller and stays open after Send returns.
func NewSender(session io.Writer) *Sender {
	return &Sender{
		session: session,
		id:      uuid.NewString(),
		state:   StateConnected,
	}
}

// State returns the phase the sender last completed or aborted in.
func (s *Sender) State() TransferState {
	return s.state
}

// Send transmits one file. Any step failure aborts the machine in
// place; the caller decides whether to retry the whole sequence over a
// fresh connection. The body is written with a single bulk write, which
// is acceptable at this protocol's scale.
func (s *Sender) Send(name string, body []byte) error {
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": s.id,
		"file_name":   name,
		"file_size":   len(body),
	}).Info("Starting file send")

	if err := wire.ValidateFileName(name); err != nil {
		s.state = StateError
		return err
	}

	if err := wire.WriteLine(s.session, name); err != nil {
		s.state = StateError
		return fmt.Errorf("send name: %w", err)
	}
	s.state = StateNameExchanged
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": s.id,
		"file_name":   name,
	}).Info("File name sent over")

	if err := wire.WriteSize(s.session, uint64(len(body))); err != nil {
		s.state = StateError
		return fmt.Errorf("send size: %w", err)
	}
	s.state = StateSizeExchanged
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": s.id,
		"file_size":   len(body),
	}).Info("File size sent over")

	if _, err := s.session.Write(body); err != nil {
		s.state = StateError
		return fmt.Errorf("send body: %w", err)
	}
	s.state = StateBodyTransferred
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": s.id,
		"state":       s.state,
	}).Debug("File body written")

	s.state = StateDone
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": s.id,
		"file_name":   name,
		"file_size":   len(body),
		"state":       s.state,
	}).Info("File send completed")

	return nil
}
