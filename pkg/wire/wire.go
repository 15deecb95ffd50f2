// Package wire implements the length-prefixed string framing spoken by the
// server and its interactive client.
//
// Each message is a 2-byte big-endian unsigned length followed by that many
// bytes of UTF-8 text. The protocol is half-duplex: one request, one response.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxMessageSize is the largest payload, in bytes, that fits the length prefix.
const MaxMessageSize = 0xFFFF

const prefixSize = 2

var (
	// ErrMessageTooLong is returned by WriteMessage when the encoded text
	// exceeds MaxMessageSize. Nothing is written in that case.
	ErrMessageTooLong = errors.New("wire: message exceeds 65535 bytes")

	// ErrMalformed is returned by ReadMessage when the payload is not valid UTF-8.
	ErrMalformed = errors.New("wire: malformed message")
)

// flusher is satisfied by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// WriteMessage writes text with its length prefix in a single Write call and
// flushes w if it buffers.
func WriteMessage(w io.Writer, text string) error {
	if len(text) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(text))
	}

	frame := make([]byte, prefixSize+len(text))
	binary.BigEndian.PutUint16(frame[:prefixSize], uint16(len(text)))
	copy(frame[prefixSize:], text)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush message: %w", err)
		}
	}
	return nil
}

// ReadMessage blocks until a complete frame is available on r and returns its
// text. A stream that ends mid-frame yields io.ErrUnexpectedEOF; a stream that
// ends cleanly between frames yields io.EOF.
func ReadMessage(r io.Reader) (string, error) {
	var header [prefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read message length: %w", err)
	}

	length := binary.BigEndian.Uint16(header[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("failed to read message body: %w", err)
	}

	if !utf8.Valid(payload) {
		return "", ErrMalformed
	}
	return string(payload), nil
}
