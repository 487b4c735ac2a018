package packstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_TinyForms(t *testing.T) {
	k, err := classify(0x00)
	require.NoError(t, err)
	assert.Equal(t, KindInteger, k)

	k, err = classify(0x7F)
	require.NoError(t, err)
	assert.Equal(t, KindInteger, k)

	k, err = classify(0x8A)
	require.NoError(t, err)
	assert.Equal(t, KindString, k)

	k, err = classify(0x9F)
	require.NoError(t, err)
	assert.Equal(t, KindList, k)

	k, err = classify(0xAF)
	require.NoError(t, err)
	assert.Equal(t, KindMap, k)

	k, err = classify(0xB3)
	require.NoError(t, err)
	assert.Equal(t, KindStruct, k)

	k, err = classify(0xFF)
	require.NoError(t, err)
	assert.Equal(t, KindInteger, k)
}

func TestClassify_SizedForms(t *testing.T) {
	cases := map[byte]Kind{
		markerNull:    KindNull,
		markerFloat:   KindFloat,
		markerFalse:   KindBoolean,
		markerTrue:    KindBoolean,
		markerInt8:    KindInteger,
		markerInt16:   KindInteger,
		markerInt32:   KindInteger,
		markerInt64:   KindInteger,
		markerBytes8:  KindBytes,
		markerBytes16: KindBytes,
		markerBytes32: KindBytes,
		markerString8: KindString,
		markerList8:   KindList,
		markerMap8:    KindMap,
		markerStruct8: KindStruct,
	}
	for marker, want := range cases {
		k, err := classify(marker)
		require.NoError(t, err)
		assert.Equal(t, want, k)
	}
}

func TestClassify_UnassignedRanges(t *testing.T) {
	for _, b := range []byte{0xC4, 0xC5, 0xC6, 0xC7, 0xCF, 0xD3, 0xD7, 0xDB, 0xDE, 0xEF} {
		_, err := classify(b)
		assert.ErrorIs(t, err, ErrMalformedMarker)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Struct", KindStruct.String())
	assert.Equal(t, "Unknown", Kind(200).String())
}
