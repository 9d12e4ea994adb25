package transfer

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sdlkit/wire"
)

// countingReader records the size of every read served.
type countingReader struct {
	r     io.Reader
	reads []int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.reads = append(c.reads, n)
	}
	return n, err
}

// runSender drives a Sender on its own goroutine; net.Pipe is
// synchronous, so sender and receiver must run concurrently.
func runSender(t *testing.T, conn net.Conn, name string, body []byte) *sync.WaitGroup {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer conn.Close()
		sender := NewSender(conn)
		if err := sender.Send(name, body); err != nil {
			t.Errorf("Send() error = %v", err)
		}
	}()
	return &wg
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		body     []byte
	}{
		{
			name:     "small_text_file",
			fileName: "report.txt",
			body:     []byte("hello"),
		},
		{
			name:     "empty_body",
			fileName: "empty.bin",
			body:     []byte{},
		},
		{
			name:     "binary_payload",
			fileName: "data.bin",
			body:     bytes.Repeat([]byte{0x00, 0xFF, 0x0A, 0x7F}, 1000),
		},
		{
			name:     "empty_name",
			fileName: "",
			body:     []byte("anonymous"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			wg := runSender(t, client, tt.fileName, tt.body)

			receiver := NewReceiver(server)
			gotName, gotBody, err := receiver.Receive()
			require.NoError(t, err)
			wg.Wait()

			assert.Equal(t, tt.fileName, gotName)
			assert.Equal(t, tt.body, gotBody)
			assert.Equal(t, StateDone, receiver.State())
		})
	}
}

func TestChunkSizeInvariance(t *testing.T) {
	body := bytes.Repeat([]byte("abcdefg"), 37)

	for _, chunkSize := range []int{1, 17, len(body)} {
		client, server := net.Pipe()
		wg := runSender(t, client, "invariant.bin", body)

		receiver := NewReceiver(server)
		receiver.SetChunkSize(chunkSize)

		_, gotBody, err := receiver.Receive()
		require.NoError(t, err)
		wg.Wait()

		assert.Equal(t, body, gotBody, "chunk size %d changed the decoded body", chunkSize)
	}
}

// Sender transmits name "report.txt", size 5, body "hello"; with chunk
// size 2 the receiver performs exactly three body reads of 2, 2 and 1
// bytes.
func TestConcreteScenario(t *testing.T) {
	client, server := net.Pipe()
	wg := runSender(t, client, "report.txt", []byte("hello"))

	// Consume the two header lines directly, then count body reads.
	name, err := wire.ReadLine(server)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", name)

	size, err := wire.ReadSize(server)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)

	counter := &countingReader{r: server}
	body, err := ReceiveBody(counter, 2, size)
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, []byte("hello"), body)
	assert.Equal(t, []int{2, 2, 1}, counter.reads)
}

func TestProgressMonotonicity(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 100)
	client, server := net.Pipe()
	wg := runSender(t, client, "mono.bin", body)

	receiver := NewReceiver(server)
	receiver.SetChunkSize(7)

	var counts []uint64
	receiver.OnProgress(func(received uint64) {
		counts = append(counts, received)
	})

	_, _, err := receiver.Receive()
	require.NoError(t, err)
	wg.Wait()

	require.NotEmpty(t, counts)
	var prev uint64
	for _, c := range counts {
		assert.GreaterOrEqual(t, c, prev, "byte count went backwards")
		assert.LessOrEqual(t, c, uint64(len(body)), "byte count exceeded declared size")
		prev = c
	}
	assert.Equal(t, uint64(len(body)), counts[len(counts)-1])
}

func TestPrematureClose(t *testing.T) {
	const declared = 64
	const sent = 10

	client, server := net.Pipe()
	go func() {
		defer client.Close()
		if err := wire.WriteLine(client, "truncated.bin"); err != nil {
			return
		}
		if err := wire.WriteSize(client, declared); err != nil {
			return
		}
		client.Write(bytes.Repeat([]byte("z"), sent))
	}()

	receiver := NewReceiver(server)
	receiver.SetChunkSize(4)

	_, body, err := receiver.Receive()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, StateError, receiver.State())

	var lost *ConnectionLostError
	require.True(t, errors.As(err, &lost))
	assert.Equal(t, uint64(sent), lost.BytesReceived)
	assert.Equal(t, uint64(declared), lost.Declared)
	assert.Len(t, body, sent, "partial bytes must be observable to the caller")
}

func TestMalformedSizeHeader(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		defer client.Close()
		wire.WriteLine(client, "bad.bin")
		wire.WriteLine(client, "abc")
	}()

	receiver := NewReceiver(server)
	name, _, err := receiver.Receive()

	require.ErrorIs(t, err, wire.ErrMalformedHeader)
	assert.Equal(t, "bad.bin", name)
	assert.Equal(t, StateError, receiver.State())
}

func TestClosedBeforeNameDelimiter(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		client.Write([]byte("no-delimiter"))
		client.Close()
	}()

	receiver := NewReceiver(server)
	_, _, err := receiver.Receive()

	require.ErrorIs(t, err, wire.ErrClosedBeforeDelimiter)
	assert.Equal(t, StateError, receiver.State())
}

func TestSenderRejectsUnframeableName(t *testing.T) {
	var buf bytes.Buffer
	sender := NewSender(&buf)

	err := sender.Send("evil\nname", []byte("x"))
	require.ErrorIs(t, err, wire.ErrEmbeddedNewline)
	assert.Equal(t, StateError, sender.State())
	assert.Zero(t, buf.Len(), "no bytes may reach the stream after a framing error")
}

// timeoutError mimics the error a connection returns when a read
// deadline armed via the session expires.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }

// stallingReader serves its data, then fails every further read with a
// timeout instead of closing.
type stallingReader struct {
	data []byte
}

func (s *stallingReader) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, timeoutError{}
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func TestReceiveBodyTimeoutCauseObservable(t *testing.T) {
	r := &stallingReader{data: []byte("zz")}

	body, err := ReceiveBody(r, 4, 10)
	require.ErrorIs(t, err, ErrConnectionLost)

	var lost *ConnectionLostError
	require.True(t, errors.As(err, &lost))
	assert.Equal(t, uint64(2), lost.BytesReceived)
	assert.Equal(t, uint64(10), lost.Declared)
	assert.Len(t, body, 2)

	// The deadline expiry must stay reachable so callers can tell a
	// stalled-but-alive peer from a peer close.
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestReceiveBodyPeerCloseCarriesNoCause(t *testing.T) {
	_, err := ReceiveBody(bytes.NewReader([]byte("zz")), 4, 10)
	require.ErrorIs(t, err, ErrConnectionLost)

	var lost *ConnectionLostError
	require.True(t, errors.As(err, &lost))
	assert.NoError(t, lost.Err)

	var netErr net.Error
	assert.False(t, errors.As(err, &netErr))
}

func TestReceiveBodyPreallocationCapped(t *testing.T) {
	// A bogus declared size must not reserve memory up front.
	body, err := ReceiveBody(bytes.NewReader(nil), 8, 1<<34)
	require.ErrorIs(t, err, ErrConnectionLost)
	assert.Less(t, cap(body), 8<<20)
}

func TestReceiveBodyZeroDeclaredSize(t *testing.T) {
	body, err := ReceiveBody(bytes.NewReader(nil), 8, 0)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown(42)", TransferState(42).String())
}
