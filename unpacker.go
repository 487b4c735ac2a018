package packstream

import (
	"io"
	"math"
)

// structState tracks whether a struct header has been read but its
// signature byte has not yet been consumed, enforcing the
// header-then-signature ordering spec.md §4.3 requires.
type structState byte

const (
	structNone structState = iota
	structHeaderRead
)

// Unpacker is a pull-based decoder over a ByteSource. The caller drives
// it: PeekNextType classifies the next value without consuming it, and
// the matching Unpack<T> method consumes it. Containers are surfaced
// header-first; the caller must consume exactly the declared number of
// child values with no implicit end marker.
//
// An Unpack<T> call for the wrong kind, or against a malformed marker,
// leaves the stream position unchanged: the marker byte is only
// consumed once its kind has been confirmed to match. Callers may
// re-peek and dispatch to a different Unpack<T> after such an error.
type Unpacker struct {
	src    *ByteSource
	struc  structState
	sigBuf byte
}

// NewUnpacker returns an Unpacker reading from src.
func NewUnpacker(src *ByteSource) *Unpacker {
	return &Unpacker{src: src}
}

// Err returns the first error encountered by the underlying source.
func (u *Unpacker) Err() error { return u.src.Err() }

// Reset rebinds the decoder to a new channel, reusing the reassembly
// buffer, and clears any half-read struct-header state.
func (u *Unpacker) Reset(r io.Reader) {
	u.src.Reset(r)
	u.struc = structNone
}

// HasNext reports whether another value is available at the current
// position. See ByteSource.HasNext for the exact semantics.
func (u *Unpacker) HasNext() bool {
	return u.src.HasNext()
}

// PeekNextType classifies the next value without consuming it. Calling
// it any number of times before an Unpack* call returns the same Kind
// and never advances the stream.
func (u *Unpacker) PeekNextType() (Kind, error) {
	b, err := u.src.PeekByte()
	if err != nil {
		return 0, err
	}
	return classify(b)
}

// expectMarker peeks the next marker byte and confirms it classifies as
// want, consuming it only on a match. A malformed marker or a marker of
// a different kind is reported without advancing the stream. A struct
// header read via UnpackStructHeader with its signature not yet
// consumed via UnpackStructSignature blocks every other entry point
// (including a second UnpackStructHeader) the same way, since the wire
// form requires the signature byte immediately after the header.
func (u *Unpacker) expectMarker(want Kind) (byte, error) {
	if u.struc == structHeaderRead {
		return 0, unexpectedType(want, KindStruct)
	}
	b, err := u.src.PeekByte()
	if err != nil {
		return 0, err
	}
	got, err := classify(b)
	if err != nil {
		return 0, err
	}
	if got != want {
		return 0, unexpectedType(want, got)
	}
	if _, err := u.src.ReadByte(); err != nil {
		return 0, err
	}
	return b, nil
}

func (u *Unpacker) readBigEndianUint(n int) (uint64, error) {
	b, err := u.src.ReadExact(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// UnpackNull consumes a Null value.
func (u *Unpacker) UnpackNull() error {
	_, err := u.expectMarker(KindNull)
	return err
}

// UnpackBoolean consumes a Boolean value.
func (u *Unpacker) UnpackBoolean() (bool, error) {
	m, err := u.expectMarker(KindBoolean)
	if err != nil {
		return false, err
	}
	return m == markerTrue, nil
}

// UnpackLong consumes an Integer value, sign-extending tiny/Int8/Int16/
// Int32 encodings to 64 bits.
func (u *Unpacker) UnpackLong() (int64, error) {
	m, err := u.expectMarker(KindInteger)
	if err != nil {
		return 0, err
	}
	switch {
	case m <= markerTinyIntMax:
		return int64(m), nil
	case m >= markerTinyNegIntMin:
		return int64(m) - 256, nil
	case m == markerInt8:
		b, err := u.src.ReadExact(1)
		if err != nil {
			return 0, err
		}
		return int64(int8(b[0])), nil
	case m == markerInt16:
		v, err := u.readBigEndianUint(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(v)), nil
	case m == markerInt32:
		v, err := u.readBigEndianUint(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(v)), nil
	default: // markerInt64
		v, err := u.readBigEndianUint(8)
		if err != nil {
			return 0, err
		}
		return int64(v), nil
	}
}

// UnpackDouble consumes a Float value.
func (u *Unpacker) UnpackDouble() (float64, error) {
	if _, err := u.expectMarker(KindFloat); err != nil {
		return 0, err
	}
	v, err := u.readBigEndianUint(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// UnpackBytes consumes a Bytes value.
func (u *Unpacker) UnpackBytes() ([]byte, error) {
	m, err := u.expectMarker(KindBytes)
	if err != nil {
		return nil, err
	}
	var l uint64
	switch m {
	case markerBytes8:
		l, err = u.readBigEndianUint(1)
	case markerBytes16:
		l, err = u.readBigEndianUint(2)
	default: // markerBytes32
		l, err = u.readBigEndianUint(4)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, l)
	if err := u.src.ReadInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnpackString consumes a String value. The decoder does not validate
// UTF-8; the bytes are converted to a Go string as-is (spec.md §9).
func (u *Unpacker) UnpackString() (string, error) {
	b, err := u.unpackStringBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (u *Unpacker) unpackStringBytes() ([]byte, error) {
	m, err := u.expectMarker(KindString)
	if err != nil {
		return nil, err
	}
	var l uint64
	switch {
	case m >= markerTinyStringMin && m <= markerTinyStringMax:
		l = uint64(m - markerTinyStringMin)
	case m == markerString8:
		l, err = u.readBigEndianUint(1)
	case m == markerString16:
		l, err = u.readBigEndianUint(2)
	default: // markerString32
		l, err = u.readBigEndianUint(4)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, l)
	if err := u.src.ReadInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnpackListHeader consumes a list header and returns the element count.
// The caller must then consume exactly that many values.
func (u *Unpacker) UnpackListHeader() (uint32, error) {
	m, err := u.expectMarker(KindList)
	if err != nil {
		return 0, err
	}
	switch {
	case m >= markerTinyListMin && m <= markerTinyListMax:
		return uint32(m - markerTinyListMin), nil
	case m == markerList8:
		v, err := u.readBigEndianUint(1)
		return uint32(v), err
	case m == markerList16:
		v, err := u.readBigEndianUint(2)
		return uint32(v), err
	default: // markerList32
		v, err := u.readBigEndianUint(4)
		return uint32(v), err
	}
}

// UnpackMapHeader consumes a map header and returns the pair count. The
// caller must then consume exactly 2*count values, in key, value order.
func (u *Unpacker) UnpackMapHeader() (uint32, error) {
	m, err := u.expectMarker(KindMap)
	if err != nil {
		return 0, err
	}
	switch {
	case m >= markerTinyMapMin && m <= markerTinyMapMax:
		return uint32(m - markerTinyMapMin), nil
	case m == markerMap8:
		v, err := u.readBigEndianUint(1)
		return uint32(v), err
	case m == markerMap16:
		v, err := u.readBigEndianUint(2)
		return uint32(v), err
	default: // markerMap32
		v, err := u.readBigEndianUint(4)
		return uint32(v), err
	}
}

// UnpackStructHeader consumes a struct header and returns the field
// count. The signature byte must be read next, via
// UnpackStructSignature, before any field value; reading them out of
// order fails with ErrUnexpectedType and does not advance the stream.
func (u *Unpacker) UnpackStructHeader() (uint32, error) {
	m, err := u.expectMarker(KindStruct)
	if err != nil {
		return 0, err
	}
	var n uint32
	switch {
	case m >= markerTinyStructMin && m <= markerTinyStructMax:
		n = uint32(m - markerTinyStructMin)
	case m == markerStruct8:
		v, err := u.readBigEndianUint(1)
		if err != nil {
			return 0, err
		}
		n = uint32(v)
	default: // markerStruct16
		v, err := u.readBigEndianUint(2)
		if err != nil {
			return 0, err
		}
		n = uint32(v)
	}
	sig, err := u.src.ReadByte()
	if err != nil {
		return 0, err
	}
	u.sigBuf = sig
	u.struc = structHeaderRead
	return n, nil
}

// UnpackStructSignature returns the signature byte of a struct whose
// header was just read via UnpackStructHeader. Calling it without a
// preceding UnpackStructHeader fails with ErrUnexpectedType.
func (u *Unpacker) UnpackStructSignature() (byte, error) {
	if u.struc != structHeaderRead {
		return 0, unexpectedType(KindInteger, KindStruct)
	}
	u.struc = structNone
	return u.sigBuf, nil
}
