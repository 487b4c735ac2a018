package packstream

import (
	"io"
	"log/slog"
)

// ByteSource is a buffered read abstraction over an io.Reader. It owns a
// fixed-capacity reassembly buffer that absorbs however the underlying
// channel chunks bytes: Ensure(k) compacts and refills the buffer until
// at least k bytes are available or the channel is exhausted. Payloads
// longer than the buffer's capacity are streamed directly from the
// channel into the destination, bypassing the reassembly buffer after
// draining whatever prefix is already held.
type ByteSource struct {
	ch    io.Reader
	log   *slog.Logger
	buf   []byte
	start int
	end   int
	size  int
	err   error
}

// NewByteSource creates a ByteSource over r using cfg's BufferSize (or
// DefaultBufferSize if unset). It returns ErrInvalidConfig if cfg's
// BufferSize is outside the accepted range.
func NewByteSource(r io.Reader, cfg Config) (*ByteSource, error) {
	size, err := cfg.bufferSize()
	if err != nil {
		return nil, err
	}
	return &ByteSource{
		ch:   r,
		log:  nopLogger,
		buf:  make([]byte, size),
		size: size,
	}, nil
}

// WithLogger attaches a structured logger for debug-level tracing of
// buffer-management events. A nil logger restores the no-op default.
func (s *ByteSource) WithLogger(l *slog.Logger) *ByteSource {
	s.log = logOrNop(l)
	return s
}

// Err returns the first error encountered by this source, if any. Once
// set, all subsequent read operations become no-ops returning that error.
func (s *ByteSource) Err() error { return s.err }

func (s *ByteSource) setErr(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Reset rebinds the source to a new underlying channel, discarding any
// buffered bytes and the latched error, but reusing the allocated
// reassembly buffer.
func (s *ByteSource) Reset(r io.Reader) {
	s.ch = r
	s.start = 0
	s.end = 0
	s.err = nil
	s.log.Debug("packstream: source reset to new channel")
}

func (s *ByteSource) length() int { return s.end - s.start }

// compact moves any unread bytes to the front of the buffer, making room
// to refill from the channel.
func (s *ByteSource) compact() {
	if s.start == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.start:s.end])
	s.start = 0
	s.end = n
}

// ensure attempts to make n bytes available, returning the number
// actually available (which is less than n only if the channel was
// exhausted) and any hard I/O error encountered along the way.
func (s *ByteSource) ensure(n int) (int, error) {
	if s.length() >= n {
		return s.length(), nil
	}
	s.compact()
	for s.length() < n && s.end < len(s.buf) {
		m, err := s.ch.Read(s.buf[s.end:])
		if m > 0 {
			s.end += m
			s.log.Debug("packstream: refilled reassembly buffer", "read", m, "buffered", s.length())
		}
		if err != nil {
			if err == io.EOF {
				return s.length(), nil
			}
			return s.length(), ioFailure(err)
		}
	}
	return s.length(), nil
}

// Ensure makes n bytes available in the reassembly buffer, compacting and
// refilling from the channel as needed. n must not exceed the buffer's
// capacity; callers with payloads larger than capacity use ReadExact,
// which streams around the buffer. Returns ErrUnexpectedEof if the
// channel is exhausted before n bytes are available.
func (s *ByteSource) Ensure(n int) error {
	if s.err != nil {
		return s.err
	}
	avail, err := s.ensure(n)
	if err != nil {
		s.setErr(err)
		return s.err
	}
	if avail < n {
		s.setErr(ErrUnexpectedEof)
		return s.err
	}
	return nil
}

// HasNext reports whether at least one further byte is currently buffered
// or obtainable from the channel without error. A clean end of stream
// (no bytes at all at a value boundary) reports false with no error
// latched; any other read failure is latched and surfaces on the next
// operation that touches the source.
func (s *ByteSource) HasNext() bool {
	if s.err != nil {
		return false
	}
	avail, err := s.ensure(1)
	if err != nil {
		s.setErr(err)
		return false
	}
	return avail >= 1
}

// Peek returns the next n bytes without consuming them. The returned
// slice aliases the internal buffer and is only valid until the next
// Ensure/Peek/ReadByte/ReadExact call.
func (s *ByteSource) Peek(n int) ([]byte, error) {
	if err := s.Ensure(n); err != nil {
		return nil, err
	}
	return s.buf[s.start : s.start+n], nil
}

// PeekByte returns the next marker byte without consuming it.
func (s *ByteSource) PeekByte() (byte, error) {
	b, err := s.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadByte consumes and returns the next byte.
func (s *ByteSource) ReadByte() (byte, error) {
	if err := s.Ensure(1); err != nil {
		return 0, err
	}
	b := s.buf[s.start]
	s.start++
	return b, nil
}

// drainBuffered copies as much of dst as the currently buffered bytes
// can fill, advancing the read position, and returns the number copied.
func (s *ByteSource) drainBuffered(dst []byte) int {
	n := copy(dst, s.buf[s.start:s.end])
	s.start += n
	return n
}

// ReadExact returns the next n bytes as a newly allocated slice. It is a
// thin allocating wrapper around ReadInto; see ReadInto for the
// in-buffer vs. oversize-streaming split.
func (s *ByteSource) ReadExact(n int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n == 0 {
		return []byte{}, nil
	}
	out := make([]byte, n)
	if err := s.ReadInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInto reads exactly len(dst) bytes into dst. Payloads that fit
// within the buffer's capacity are served from the reassembly buffer;
// larger payloads are streamed directly from the channel into dst after
// draining whatever prefix is already buffered. Used directly by
// callers that already own the destination buffer (avoiding ReadExact's
// allocation), and by ReadExact itself.
func (s *ByteSource) ReadInto(dst []byte) error {
	if s.err != nil {
		return s.err
	}
	n := len(dst)
	if n == 0 {
		return nil
	}
	if n <= s.size {
		if err := s.Ensure(n); err != nil {
			return err
		}
		copy(dst, s.buf[s.start:s.start+n])
		s.start += n
		return nil
	}
	copied := s.drainBuffered(dst)
	if copied == n {
		return nil
	}
	s.log.Debug("packstream: streaming oversize payload directly from channel", "len", n, "buffer_size", s.size)
	if _, err := io.ReadFull(s.ch, dst[copied:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.setErr(ErrUnexpectedEof)
		} else {
			s.setErr(ioFailure(err))
		}
		return s.err
	}
	return nil
}
