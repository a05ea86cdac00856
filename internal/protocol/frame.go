// ABOUTME: Newline-delimited framing of Messages over a byte stream.
// ABOUTME: Decode failures surface as FrameError; transport failures end the stream.

package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// FrameError reports a frame that could not be decoded. The stream remains usable.
type FrameError struct {
	Frame []byte
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bad frame (%d bytes): %v", len(e.Frame), e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Reader reads framed Messages. Frames have no size limit: byte-wise RSA
// grows each plaintext byte to a full modulus block, so long texts under
// large keys produce very long lines.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadMessage returns the next Message. It returns io.EOF when the peer
// closes cleanly, a *FrameError for an undecodable frame, and any other
// error when the stream is broken. A final line without a trailing
// newline is still decoded.
func (r *Reader) ReadMessage() (Message, error) {
	for {
		raw, readErr := r.r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Message{}, readErr
		}
		line := bytes.TrimSpace(raw)
		if len(line) > 0 {
			m, err := Decode(line)
			if err != nil {
				return Message{}, &FrameError{Frame: line, Err: err}
			}
			return m, nil
		}
		if readErr != nil {
			return Message{}, readErr
		}
	}
}

// Writer writes framed Messages. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage encodes m and writes it as a single frame.
func (w *Writer) WriteMessage(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
