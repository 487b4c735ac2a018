package packstream

import (
	"bytes"
	"errors"
	"testing"
)

// FuzzUnpacker feeds arbitrary byte sequences into an Unpacker the way
// a driver would when talking to an untrusted or corrupted peer: it
// must never panic, and any error it returns must be one of the typed
// sentinel kinds this package defines.
func FuzzUnpacker(f *testing.F) {
	f.Add([]byte{0xC0})
	f.Add([]byte{0xC4})
	f.Add([]byte{markerInt64, 0, 0, 0})
	f.Add([]byte{byte(markerTinyStructMin + 2), 'N'})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		src, err := NewByteSource(bytes.NewReader(data), Config{BufferSize: 7})
		if err != nil {
			t.Fatalf("NewByteSource: %v", err)
		}
		u := NewUnpacker(src)

		for u.HasNext() {
			kind, err := u.PeekNextType()
			if err != nil {
				break
			}
			switch kind {
			case KindNull:
				err = u.UnpackNull()
			case KindBoolean:
				_, err = u.UnpackBoolean()
			case KindInteger:
				_, err = u.UnpackLong()
			case KindFloat:
				_, err = u.UnpackDouble()
			case KindBytes:
				_, err = u.UnpackBytes()
			case KindString:
				_, err = u.UnpackString()
			case KindList:
				_, err = u.UnpackListHeader()
			case KindMap:
				_, err = u.UnpackMapHeader()
			case KindStruct:
				if _, err = u.UnpackStructHeader(); err == nil {
					_, err = u.UnpackStructSignature()
				}
			}
			if err != nil {
				break
			}
		}
		if err := u.Err(); err != nil && !isKnownPackstreamError(err) {
			t.Fatalf("unrecognized error kind: %v", err)
		}
	})
}

// FuzzPackUnpackRoundTrip checks that integers surviving PackInt and
// strings surviving PackString decode back to the same value,
// regardless of which size class the encoder chose.
func FuzzPackUnpackRoundTrip(f *testing.F) {
	f.Add(int64(0), "")
	f.Add(int64(-16), "a")
	f.Add(int64(1<<63-1), "Mjölnir")

	f.Fuzz(func(t *testing.T, n int64, s string) {
		var buf bytes.Buffer
		sink, err := NewByteSink(&buf, DefaultConfig())
		if err != nil {
			t.Fatalf("NewByteSink: %v", err)
		}
		p := NewPacker(sink)
		if err := p.PackInt(n); err != nil {
			t.Fatalf("PackInt: %v", err)
		}
		if err := p.PackString(s); err != nil {
			t.Fatalf("PackString: %v", err)
		}
		if err := p.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}

		src, err := NewByteSource(bytes.NewReader(buf.Bytes()), DefaultConfig())
		if err != nil {
			t.Fatalf("NewByteSource: %v", err)
		}
		u := NewUnpacker(src)
		gotN, err := u.UnpackLong()
		if err != nil {
			t.Fatalf("UnpackLong: %v", err)
		}
		if gotN != n {
			t.Fatalf("round-trip int mismatch: got %d, want %d", gotN, n)
		}
		gotS, err := u.UnpackString()
		if err != nil {
			t.Fatalf("UnpackString: %v", err)
		}
		if gotS != s {
			t.Fatalf("round-trip string mismatch: got %q, want %q", gotS, s)
		}
	})
}

func isKnownPackstreamError(err error) bool {
	for _, sentinel := range []error{
		ErrMalformedMarker, ErrUnexpectedType, ErrUnexpectedEof,
		ErrOverflow, ErrInvalidKey, ErrIoFailure, ErrInvalidConfig,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
