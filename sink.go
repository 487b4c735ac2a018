package packstream

import (
	"bufio"
	"io"
	"log/slog"
)

// ByteSink is a buffered write abstraction over an io.Writer. Writes go
// into a fixed-capacity buffer; when a write would overflow it, the sink
// flushes first, then writes. Writes larger than the buffer capacity are
// split: the buffer is drained, then the payload is written directly to
// the underlying channel. Flush is explicit — the codec never auto-flushes
// except to make room for a pending write.
type ByteSink struct {
	w    *bufio.Writer
	ch   io.Writer
	log  *slog.Logger
	err  error
	size int
}

// NewByteSink creates a ByteSink over w using cfg's BufferSize (or
// DefaultBufferSize if unset). It returns ErrInvalidConfig if cfg's
// BufferSize is outside the accepted range.
func NewByteSink(w io.Writer, cfg Config) (*ByteSink, error) {
	size, err := cfg.bufferSize()
	if err != nil {
		return nil, err
	}
	return &ByteSink{
		w:    bufio.NewWriterSize(w, size),
		ch:   w,
		log:  nopLogger,
		size: size,
	}, nil
}

// WithLogger attaches a structured logger for debug-level tracing of
// buffer-management events. A nil logger restores the no-op default.
func (s *ByteSink) WithLogger(l *slog.Logger) *ByteSink {
	s.log = logOrNop(l)
	return s
}

// Err returns the first error encountered by this sink, if any. Once set,
// all subsequent write operations become no-ops.
func (s *ByteSink) Err() error { return s.err }

func (s *ByteSink) setErr(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Flush drains the buffer to the underlying channel.
func (s *ByteSink) Flush() error {
	if s.err != nil {
		return s.err
	}
	if err := s.w.Flush(); err != nil {
		s.setErr(ioFailure(err))
	}
	return s.err
}

// WriteByte writes a single byte, flushing first if the buffer is full.
func (s *ByteSink) WriteByte(b byte) error {
	if s.err != nil {
		return s.err
	}
	if err := s.w.WriteByte(b); err != nil {
		s.setErr(ioFailure(err))
	}
	return s.err
}

// Write writes p, flushing the buffer first if p would overflow it and
// bypassing the buffer entirely (writing directly to the channel) when p
// itself is larger than the buffer's capacity.
func (s *ByteSink) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if len(p) > s.size {
		// Oversize payload: drain whatever is already buffered, then
		// write the remainder straight to the channel.
		if err := s.w.Flush(); err != nil {
			s.setErr(ioFailure(err))
			return 0, s.err
		}
		s.log.Debug("packstream: streaming oversize write directly to channel", "len", len(p), "buffer_size", s.size)
		n, err := s.ch.Write(p)
		if err != nil {
			s.setErr(ioFailure(err))
		}
		return n, s.err
	}
	n, err := s.w.Write(p)
	if err != nil {
		s.setErr(ioFailure(err))
	}
	return n, s.err
}

// writeBigEndian writes the low n bytes of v, most significant first.
func (s *ByteSink) writeBigEndian(v uint64, n int) {
	if s.err != nil {
		return
	}
	var buf [8]byte
	for i := 0; i < n; i++ {
		buf[i] = byte(v >> uint((n-1-i)*8))
	}
	_, _ = s.Write(buf[:n])
}
