// Package state implements the symmetric snapshot stream every stateful
// component uses to save and restore itself. The same StreamState method
// runs in both directions, so the field order is defined exactly once.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrCorruptBlock is returned when a block is shorter or longer than the
// fields its component streams.
var ErrCorruptBlock = errors.New("corrupt state block")

// maxBlockSize guards against garbage length prefixes.
const maxBlockSize = 16 << 20

// Streamer is implemented by every component that takes part in a save state.
type Streamer interface {
	StreamState(s *Stream)
}

// Stream reads or writes primitive fields in call order.
type Stream struct {
	saving bool
	buf    []byte
	pos    int
	err    error
}

// NewWriter returns a stream that records fields.
func NewWriter() *Stream {
	return &Stream{saving: true}
}

// NewReader returns a stream that restores fields from data.
func NewReader(data []byte) *Stream {
	return &Stream{buf: data}
}

// Saving reports the stream direction.
func (s *Stream) Saving() bool { return s.saving }

// Loading reports the stream direction.
func (s *Stream) Loading() bool { return !s.saving }

// Data returns the recorded bytes of a writer stream.
func (s *Stream) Data() []byte { return s.buf }

// Err returns the first error hit while loading.
func (s *Stream) Err() error { return s.err }

// Remaining returns the number of unread bytes of a reader stream.
func (s *Stream) Remaining() int { return len(s.buf) - s.pos }

func (s *Stream) take(n int) []byte {
	if s.err != nil {
		return nil
	}
	if s.pos+n > len(s.buf) {
		s.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorruptBlock, n, s.pos, len(s.buf)-s.pos)
		return nil
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b
}

func (s *Stream) Uint8(v *uint8) {
	if s.saving {
		s.buf = append(s.buf, *v)
		return
	}
	if b := s.take(1); b != nil {
		*v = b[0]
	}
}

func (s *Stream) Int8(v *int8) {
	u := uint8(*v)
	s.Uint8(&u)
	*v = int8(u)
}

func (s *Stream) Bool(v *bool) {
	var u uint8
	if *v {
		u = 1
	}
	s.Uint8(&u)
	*v = u != 0
}

func (s *Stream) Uint16(v *uint16) {
	if s.saving {
		s.buf = binary.LittleEndian.AppendUint16(s.buf, *v)
		return
	}
	if b := s.take(2); b != nil {
		*v = binary.LittleEndian.Uint16(b)
	}
}

func (s *Stream) Int16(v *int16) {
	u := uint16(*v)
	s.Uint16(&u)
	*v = int16(u)
}

func (s *Stream) Uint32(v *uint32) {
	if s.saving {
		s.buf = binary.LittleEndian.AppendUint32(s.buf, *v)
		return
	}
	if b := s.take(4); b != nil {
		*v = binary.LittleEndian.Uint32(b)
	}
}

func (s *Stream) Int32(v *int32) {
	u := uint32(*v)
	s.Uint32(&u)
	*v = int32(u)
}

func (s *Stream) Uint64(v *uint64) {
	if s.saving {
		s.buf = binary.LittleEndian.AppendUint64(s.buf, *v)
		return
	}
	if b := s.take(8); b != nil {
		*v = binary.LittleEndian.Uint64(b)
	}
}

func (s *Stream) Int64(v *int64) {
	u := uint64(*v)
	s.Uint64(&u)
	*v = int64(u)
}

// Int streams a platform int as 64 bits.
func (s *Stream) Int(v *int) {
	i := int64(*v)
	s.Int64(&i)
	*v = int(i)
}

// Bytes streams a fixed-size byte slice. The length is recorded and must
// match on load.
func (s *Stream) Bytes(data []byte) {
	n := uint32(len(data))
	s.Uint32(&n)
	if s.saving {
		s.buf = append(s.buf, data...)
		return
	}
	if s.err == nil && int(n) != len(data) {
		s.err = fmt.Errorf("%w: array of %d bytes, state has %d", ErrCorruptBlock, len(data), n)
		return
	}
	if b := s.take(int(n)); b != nil {
		copy(data, b)
	}
}

// Uint16s streams a fixed-size slice of 16 bit values.
func (s *Stream) Uint16s(data []uint16) {
	n := uint32(len(data))
	s.Uint32(&n)
	if s.err == nil && s.Loading() && int(n) != len(data) {
		s.err = fmt.Errorf("%w: array of %d words, state has %d", ErrCorruptBlock, len(data), n)
		return
	}
	for i := range data {
		s.Uint16(&data[i])
	}
}

// Int32s streams a fixed-size slice of 32 bit values.
func (s *Stream) Int32s(data []int32) {
	n := uint32(len(data))
	s.Uint32(&n)
	if s.err == nil && s.Loading() && int(n) != len(data) {
		s.err = fmt.Errorf("%w: array of %d values, state has %d", ErrCorruptBlock, len(data), n)
		return
	}
	for i := range data {
		s.Int32(&data[i])
	}
}

// WriteBlock serializes c into w as one length-prefixed block.
func WriteBlock(w io.Writer, c Streamer) error {
	s := NewWriter()
	c.StreamState(s)
	return writeRaw(w, s.Data())
}

// WriteEmptyBlock writes a zero-length block, reserving its slot.
func WriteEmptyBlock(w io.Writer) error {
	return writeRaw(w, nil)
}

func writeRaw(w io.Writer, data []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readRaw(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxBlockSize {
		return nil, fmt.Errorf("%w: block size %d", ErrCorruptBlock, size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	return data, nil
}

// ReadBlock restores c from the next block of r. The block must be consumed
// exactly.
func ReadBlock(r io.Reader, c Streamer) error {
	data, err := readRaw(r)
	if err != nil {
		return err
	}
	s := NewReader(data)
	c.StreamState(s)
	if s.Err() != nil {
		return s.Err()
	}
	if s.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptBlock, s.Remaining())
	}
	return nil
}

// SkipBlock discards the next block of r.
func SkipBlock(r io.Reader) error {
	_, err := readRaw(r)
	return err
}
