// Package copystream implements the multi-file copy stream used to pull
// files off machines that only offer a command channel.
//
// A stream is a sequence of newline terminated records:
//
//	filename|base64(rawdeflate(content))\n
//
// The filename is a bare name without any directory component. A file that
// could not be read on the remote side is reported as a record named
// filename + ErrorSuffix whose content is the error text. A blank line, or
// the end of input after a complete record, ends the stream.
package copystream

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Delimiter separates the filename from the payload. It is not part
	// of the base64 alphabet so splitting on its first occurrence is safe.
	Delimiter = '|'

	// ErrorSuffix marks records carrying a remote read error instead of
	// file content
	ErrorSuffix = ".copyerror"
)

// ErrProtocolFormat is returned for malformed streams and unsafe filenames
var ErrProtocolFormat = errors.New("malformed copy stream")

// Record is one decoded file
type Record struct {
	Filename string
	Data     []byte
}

// IsError reports whether the record carries a remote read error
func (r *Record) IsError() bool {
	return IsErrorRecord(r.Filename)
}

// IsErrorRecord reports whether filename names an error record
func IsErrorRecord(filename string) bool {
	return strings.HasSuffix(filename, ErrorSuffix)
}

// ValidateFilename rejects names that could escape the destination
// directory or collide with the framing
func ValidateFilename(name string) error {
	switch name {
	case "", ".", "..":
		return fmt.Errorf("%w: invalid filename %q", ErrProtocolFormat, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: path not filename %q", ErrProtocolFormat, name)
	}
	if strings.ContainsAny(name, "|\n\r") {
		return fmt.Errorf("%w: filename %q contains framing characters", ErrProtocolFormat, name)
	}
	return nil
}

func isBase64Byte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '=':
		return true
	}
	return false
}
