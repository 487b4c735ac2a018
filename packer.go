package packstream

import (
	"math"
)

// maxUint32 is the largest length/count representable by the format's
// widest size class below struct fields (2^31-1, per spec.md's 0..2^31-1
// bound on string/bytes/list/map lengths).
const maxPayloadLength = (1 << 31) - 1

// maxStructFields is the largest field count a struct header can carry
// (struct16's 16-bit field count; there is no struct32).
const maxStructFields = (1 << 16) - 1

// Packer emits marker+payload sequences for PackStream values through a
// ByteSink, selecting the narrowest legal encoding for every value that
// admits more than one.
type Packer struct {
	sink *ByteSink
}

// NewPacker returns a Packer writing to sink.
func NewPacker(sink *ByteSink) *Packer {
	return &Packer{sink: sink}
}

// Flush drains the underlying sink's buffer to its channel.
func (p *Packer) Flush() error { return p.sink.Flush() }

// Err returns the first error encountered by the underlying sink.
func (p *Packer) Err() error { return p.sink.Err() }

// PackNull writes the null marker.
func (p *Packer) PackNull() error {
	p.sink.WriteByte(markerNull)
	return p.sink.Err()
}

// PackBoolean writes the true/false marker.
func (p *Packer) PackBoolean(v bool) error {
	if v {
		p.sink.WriteByte(markerTrue)
	} else {
		p.sink.WriteByte(markerFalse)
	}
	return p.sink.Err()
}

// PackInt writes n using the shortest legal integer encoding:
// a single tiny byte for -16..127, Int8 for the remainder of the 8-bit
// signed range, then Int16, Int32, Int64 by increasing fit.
func (p *Packer) PackInt(n int64) error {
	switch {
	case n >= -16 && n <= 127:
		p.sink.WriteByte(byte(n))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		p.sink.WriteByte(markerInt8)
		p.sink.writeBigEndian(uint64(uint8(int8(n))), 1)
	case n >= math.MinInt16 && n <= math.MaxInt16:
		p.sink.WriteByte(markerInt16)
		p.sink.writeBigEndian(uint64(uint16(int16(n))), 2)
	case n >= math.MinInt32 && n <= math.MaxInt32:
		p.sink.WriteByte(markerInt32)
		p.sink.writeBigEndian(uint64(uint32(int32(n))), 4)
	default:
		p.sink.WriteByte(markerInt64)
		p.sink.writeBigEndian(uint64(n), 8)
	}
	return p.sink.Err()
}

// PackFloat writes f as an 8-byte big-endian IEEE-754 binary64. There is
// no narrower float encoding in the format.
func (p *Packer) PackFloat(f float64) error {
	p.sink.WriteByte(markerFloat)
	p.sink.writeBigEndian(math.Float64bits(f), 8)
	return p.sink.Err()
}

// PackBytes writes b as a Bytes value, choosing Bytes8/16/32 by length.
// There is no tiny-bytes class; bytes and strings are distinct wire
// types even when they share a length.
func (p *Packer) PackBytes(b []byte) error {
	if err := p.packBytesHeader(len(b)); err != nil {
		return err
	}
	p.sink.Write(b)
	return p.sink.Err()
}

func (p *Packer) packBytesHeader(l int) error {
	switch {
	case l > maxPayloadLength:
		return ErrOverflow
	case l < 1<<8:
		p.sink.WriteByte(markerBytes8)
		p.sink.writeBigEndian(uint64(l), 1)
	case l < 1<<16:
		p.sink.WriteByte(markerBytes16)
		p.sink.writeBigEndian(uint64(l), 2)
	default:
		p.sink.WriteByte(markerBytes32)
		p.sink.writeBigEndian(uint64(l), 4)
	}
	return p.sink.Err()
}

// PackString writes s as a String value, choosing the narrowest size
// class for its UTF-8 byte length.
func (p *Packer) PackString(s string) error {
	return p.PackStringBytes([]byte(s))
}

// PackStringBytes writes b as a String value, taking b directly as the
// UTF-8 payload without converting through a Go string. Produces
// byte-identical output to PackString for valid UTF-8 input; invalid
// UTF-8 is written as-is, per the caller's precondition (spec.md §9).
func (p *Packer) PackStringBytes(b []byte) error {
	if err := p.packStringHeader(len(b)); err != nil {
		return err
	}
	p.sink.Write(b)
	return p.sink.Err()
}

func (p *Packer) packStringHeader(l int) error {
	switch {
	case l > maxPayloadLength:
		return ErrOverflow
	case l < 16:
		p.sink.WriteByte(byte(markerTinyStringMin + l))
	case l < 1<<8:
		p.sink.WriteByte(markerString8)
		p.sink.writeBigEndian(uint64(l), 1)
	case l < 1<<16:
		p.sink.WriteByte(markerString16)
		p.sink.writeBigEndian(uint64(l), 2)
	default:
		p.sink.WriteByte(markerString32)
		p.sink.writeBigEndian(uint64(l), 4)
	}
	return p.sink.Err()
}

// PackListHeader writes a list header for n upcoming elements. The
// caller must pack exactly n values immediately afterward.
func (p *Packer) PackListHeader(n int) error {
	switch {
	case n < 0 || n > maxPayloadLength:
		return ErrOverflow
	case n < 16:
		p.sink.WriteByte(byte(markerTinyListMin + n))
	case n < 1<<8:
		p.sink.WriteByte(markerList8)
		p.sink.writeBigEndian(uint64(n), 1)
	case n < 1<<16:
		p.sink.WriteByte(markerList16)
		p.sink.writeBigEndian(uint64(n), 2)
	default:
		p.sink.WriteByte(markerList32)
		p.sink.writeBigEndian(uint64(n), 4)
	}
	return p.sink.Err()
}

// PackMapHeader writes a map header for n upcoming (key, value) pairs.
// The caller must pack exactly 2*n values immediately afterward, in
// key, value, key, value order.
func (p *Packer) PackMapHeader(n int) error {
	switch {
	case n < 0 || n > maxPayloadLength:
		return ErrOverflow
	case n < 16:
		p.sink.WriteByte(byte(markerTinyMapMin + n))
	case n < 1<<8:
		p.sink.WriteByte(markerMap8)
		p.sink.writeBigEndian(uint64(n), 1)
	case n < 1<<16:
		p.sink.WriteByte(markerMap16)
		p.sink.writeBigEndian(uint64(n), 2)
	default:
		p.sink.WriteByte(markerMap32)
		p.sink.writeBigEndian(uint64(n), 4)
	}
	return p.sink.Err()
}

// PackStructHeader writes a struct header for n upcoming fields tagged
// with signature. The caller must pack exactly n values immediately
// afterward. Struct field counts above 65535 are not representable
// (there is no struct32).
func (p *Packer) PackStructHeader(n int, signature byte) error {
	switch {
	case n < 0 || n > maxStructFields:
		return ErrOverflow
	case n < 16:
		p.sink.WriteByte(byte(markerTinyStructMin + n))
	case n < 1<<8:
		p.sink.WriteByte(markerStruct8)
		p.sink.writeBigEndian(uint64(n), 1)
	default:
		p.sink.WriteByte(markerStruct16)
		p.sink.writeBigEndian(uint64(n), 2)
	}
	p.sink.WriteByte(signature)
	return p.sink.Err()
}

// PackList writes a list header for len(items) followed by each element,
// recursively packed via pack. Elements may be heterogeneous.
func (p *Packer) PackList(items []any) error {
	if err := p.PackListHeader(len(items)); err != nil {
		return err
	}
	for _, v := range items {
		if err := p.Pack(v); err != nil {
			return err
		}
	}
	return p.sink.Err()
}

// MapEntry is one (key, value) pair of a string-keyed map, in the order
// it should appear on the wire.
type MapEntry struct {
	Key   string
	Value any
}

// PackMap writes a map header for len(entries) followed by each entry's
// key and value, in the order given. Insertion order is preserved on
// the wire exactly as supplied; PackStream imposes no canonical order.
func (p *Packer) PackMap(entries []MapEntry) error {
	if err := p.PackMapHeader(len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		if err := p.PackString(e.Key); err != nil {
			return err
		}
		if err := p.Pack(e.Value); err != nil {
			return err
		}
	}
	return p.sink.Err()
}

// PackStringMap writes a map header followed by each entry of m. Go map
// iteration order is randomized, so callers needing a reproducible wire
// order should use PackMap with an explicit []MapEntry instead.
func (p *Packer) PackStringMap(m map[string]any) error {
	if err := p.PackMapHeader(len(m)); err != nil {
		return err
	}
	for k, v := range m {
		if err := p.PackString(k); err != nil {
			return err
		}
		if err := p.Pack(v); err != nil {
			return err
		}
	}
	return p.sink.Err()
}

// PackAnyMap writes a map header followed by each entry of m, the same
// way PackStringMap does, but for a loosely-typed mapping whose key
// type isn't statically known to be string. Every key is checked with a
// type assertion before anything is written; a non-string key returns
// ErrInvalidKey (spec.md §4.2/§7 — grounded on the original's generic
// Map<Object,Object> pack path, which performs this check at runtime
// rather than relying on the host language's type system).
func (p *Packer) PackAnyMap(m map[any]any) error {
	for k := range m {
		if _, ok := k.(string); !ok {
			return ErrInvalidKey
		}
	}
	if err := p.PackMapHeader(len(m)); err != nil {
		return err
	}
	for k, v := range m {
		if err := p.PackString(k.(string)); err != nil {
			return err
		}
		if err := p.Pack(v); err != nil {
			return err
		}
	}
	return p.sink.Err()
}

// Pack writes v, dispatching on its dynamic Go type to the matching
// Pack<Kind> method. Supported types: nil, bool, the signed/unsigned
// integer kinds (widened to int64, with uint/uint64 values above
// math.MaxInt64 rejected as ErrOverflow — the format has no unsigned
// integer kind), float32/float64, []byte, string, []any (as a list),
// []MapEntry, map[string]any, and map[any]any (as a map, the last
// rejecting non-string keys as ErrInvalidKey). Any other type is a
// programmer error and panics, matching the behavior of an un-typed
// dynamic encoder handed a value outside its value universe.
func (p *Packer) Pack(v any) error {
	switch t := v.(type) {
	case nil:
		return p.PackNull()
	case bool:
		return p.PackBoolean(t)
	case int:
		return p.PackInt(int64(t))
	case int8:
		return p.PackInt(int64(t))
	case int16:
		return p.PackInt(int64(t))
	case int32:
		return p.PackInt(int64(t))
	case int64:
		return p.PackInt(t)
	case uint:
		return p.packUint64(uint64(t))
	case uint8:
		return p.PackInt(int64(t))
	case uint16:
		return p.PackInt(int64(t))
	case uint32:
		return p.PackInt(int64(t))
	case uint64:
		return p.packUint64(t)
	case float32:
		return p.PackFloat(float64(t))
	case float64:
		return p.PackFloat(t)
	case []byte:
		return p.PackBytes(t)
	case string:
		return p.PackString(t)
	case []any:
		return p.PackList(t)
	case []MapEntry:
		return p.PackMap(t)
	case map[string]any:
		return p.PackStringMap(t)
	case map[any]any:
		return p.PackAnyMap(t)
	default:
		panic("packstream: Pack: unsupported value type")
	}
}

// packUint64 widens v to int64, rejecting values above math.MaxInt64:
// PackStream has no unsigned integer kind, so an unsigned value whose
// top bit is set cannot be represented without silently wrapping to a
// negative number.
func (p *Packer) packUint64(v uint64) error {
	if v > math.MaxInt64 {
		return ErrOverflow
	}
	return p.PackInt(int64(v))
}
