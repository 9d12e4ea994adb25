package wire

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Delimiter is the single byte terminating every header field.
const Delimiter = '\n'

// MaxFileNameLength is the maximum allowed file name length in bytes.
// The value (255) matches typical filesystem limits.
const MaxFileNameLength = 255

var (
	// ErrEmbeddedNewline indicates a field contains the delimiter byte,
	// which would corrupt the framing.
	ErrEmbeddedNewline = errors.New("field contains embedded newline")

	// ErrFileNameTooLong indicates that a file name exceeds the maximum allowed length.
	ErrFileNameTooLong = errors.New("file name too long")

	// ErrClosedBeforeDelimiter indicates the stream ended before a newline
	// arrived. It is distinct from reading a legitimately empty line.
	ErrClosedBeforeDelimiter = errors.New("stream closed before delimiter")

	// ErrMalformedHeader indicates the size line is not a valid
	// non-negative decimal integer. A corrupted stream cannot
	// self-correct, so this is never retried.
	ErrMalformedHeader = errors.New("malformed size header")
)

// ValidateFileName checks that a name can be framed safely.
// Names carrying the delimiter have undefined framing and are rejected
// before any bytes reach the stream.
func ValidateFileName(name string) error {
	if strings.ContainsRune(name, Delimiter) || strings.ContainsRune(name, '\r') {
		return ErrEmbeddedNewline
	}
	if len(name) > MaxFileNameLength {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFileNameTooLong, len(name), MaxFileNameLength)
	}
	return nil
}

// WriteLine frames text as one header field: the UTF-8 bytes of text
// followed by exactly one newline. The text must not contain a newline.
func WriteLine(w io.Writer, text string) error {
	if strings.ContainsRune(text, Delimiter) {
		return ErrEmbeddedNewline
	}
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// ReadLine reads one header field, accumulating bytes one at a time
// until the delimiter is observed. The returned text excludes the
// delimiter.
//
// If the stream ends before any delimiter arrives, ReadLine returns
// ErrClosedBeforeDelimiter together with whatever text accumulated, so
// callers can distinguish a broken connection from an empty field.
func ReadLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == Delimiter {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
			continue
		}
		if err != nil {
			if err == io.EOF {
				logrus.WithFields(logrus.Fields{
					"function":    "ReadLine",
					"accumulated": sb.Len(),
				}).Debug("Stream closed before delimiter")
				return sb.String(), ErrClosedBeforeDelimiter
			}
			return sb.String(), fmt.Errorf("read line: %w", err)
		}
	}
}

// WriteSize frames size as its decimal ASCII text followed by one newline.
func WriteSize(w io.Writer, size uint64) error {
	return WriteLine(w, strconv.FormatUint(size, 10))
}

// ReadSize reads one header field and parses it as a non-negative
// decimal integer. A non-numeric line is a malformed header, surfaced
// immediately and never retried.
func ReadSize(r io.Reader) (uint64, error) {
	line, err := ReadLine(r)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReadSize",
			"line":     line,
		}).Debug("Could not parse file size as integer")
		return 0, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	return size, nil
}
