package recfile

import (
	"fmt"
	"io"
)

// Encoder writes a record payload.
//
// EncodeTo must write exactly n bytes to w. Writing fewer makes the operation
// fail with [ErrShortPayload]; a write past n is refused with
// [ErrPayloadOverflow].
type Encoder interface {
	EncodeTo(w io.Writer, n uint32) error
}

// Decoder reads a record payload.
//
// DecodeFrom is handed a reader that yields exactly the n meaningful bytes
// of the record and then io.EOF.
type Decoder interface {
	DecodeFrom(r io.Reader, n uint32) error
}

// EncoderFunc adapts a function to [Encoder].
type EncoderFunc func(w io.Writer, n uint32) error

// EncodeTo calls f(w, n).
func (f EncoderFunc) EncodeTo(w io.Writer, n uint32) error {
	return f(w, n)
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(r io.Reader, n uint32) error

// DecodeFrom calls f(r, n).
func (f DecoderFunc) DecodeFrom(r io.Reader, n uint32) error {
	return f(r, n)
}

// Bytes returns an [Encoder] that writes p. The length passed to Add or Set
// must be len(p).
func Bytes(p []byte) Encoder {
	return bytesEncoder(p)
}

type bytesEncoder []byte

func (b bytesEncoder) EncodeTo(w io.Writer, n uint32) error {
	if uint64(len(b)) != uint64(n) {
		return fmt.Errorf("encoder holds %d bytes, asked for %d: %w", len(b), n, ErrInvalidInput)
	}

	_, err := w.Write(b)

	return err
}

// Buffer is a [Decoder] that collects a record into Data, reusing its
// backing array across calls.
type Buffer struct {
	Data []byte
}

// DecodeFrom reads the n record bytes into b.Data.
func (b *Buffer) DecodeFrom(r io.Reader, n uint32) error {
	if uint64(cap(b.Data)) < uint64(n) {
		b.Data = make([]byte, n)
	}

	b.Data = b.Data[:n]

	_, err := io.ReadFull(r, b.Data)

	return err
}

// exactWriter passes writes through to w while enforcing an exact byte count.
type exactWriter struct {
	w         io.Writer
	remaining int64
}

func (e *exactWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > e.remaining {
		return 0, fmt.Errorf("write of %d bytes with %d remaining: %w", len(p), e.remaining, ErrPayloadOverflow)
	}

	n, err := e.w.Write(p)
	e.remaining -= int64(n)

	return n, err
}

// encodePayload runs enc against the n-byte payload area starting at off.
func encodePayload(w io.WriterAt, off int64, n uint32, enc Encoder) error {
	if enc == nil {
		return fmt.Errorf("encoder is nil: %w", ErrInvalidInput)
	}

	ew := &exactWriter{w: io.NewOffsetWriter(w, off), remaining: int64(n)}

	err := enc.EncodeTo(ew, n)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if ew.remaining != 0 {
		return fmt.Errorf("encoder wrote %d of %d bytes: %w", int64(n)-ew.remaining, n, ErrShortPayload)
	}

	return nil
}

// decodePayload runs dec against the n-byte payload starting at off.
func decodePayload(r io.ReaderAt, off int64, n uint32, dec Decoder) error {
	if dec == nil {
		return fmt.Errorf("decoder is nil: %w", ErrInvalidInput)
	}

	err := dec.DecodeFrom(io.NewSectionReader(r, off, int64(n)), n)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}
