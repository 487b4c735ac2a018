package packstream

import "math"

// DefaultBufferSize is the capacity, in bytes, of the reassembly/output
// buffer used when a Config does not specify one.
const DefaultBufferSize = 8192

// Config is the single recognized configuration surface for the codec:
// the capacity of the reassembly buffer (ByteSource) or output buffer
// (ByteSink). A zero Config is not valid; use DefaultConfig() or set
// BufferSize explicitly.
type Config struct {
	// BufferSize is the buffer capacity in bytes. Must be in (0, 2^31].
	// Sizes below 11 bytes are valid and force callers through the
	// cross-boundary streaming path.
	BufferSize int
}

// DefaultConfig returns a Config with BufferSize set to DefaultBufferSize.
func DefaultConfig() Config {
	return Config{BufferSize: DefaultBufferSize}
}

// bufferSize resolves the effective buffer size, applying DefaultBufferSize
// when BufferSize is unset, and validates the result against the accepted
// range of (0, 2^31].
func (c Config) bufferSize() (int, error) {
	size := c.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	if size < 0 || size > math.MaxInt32 {
		return 0, ErrInvalidConfig
	}
	return size, nil
}
