// Package wire implements the newline-framed header codec used by the
// file transfer protocol.
//
// A header field is the field's UTF-8 text followed by exactly one
// newline byte (0x0A). The codec never emits or expects a carriage
// return. Two field kinds exist: a free-form file name and a decimal
// file size.
//
// The wire format for one transfer is:
//
//	<file-name-utf8-bytes> 0x0A
//	<decimal-ascii-file-size> 0x0A
//	<file-size bytes of raw binary payload>
//
// ReadLine distinguishes a legitimately empty line from a stream that
// closed before any delimiter arrived: the former returns ("", nil),
// the latter returns ErrClosedBeforeDelimiter. Callers decide how to
// treat an empty file name.
package wire
