// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCESU8_RoundTrip_ASCII(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeCESU8("hello world", 0)
	require.NoError(t, err)

	decoded, err := DecodeCESU8(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello world", decoded)
}

func TestCESU8_RoundTrip_TwoAndThreeByte(t *testing.T) {
	t.Parallel()

	// "café" (e-acute, 2-byte) and a CJK ideograph (3-byte).
	s := "café中文"

	encoded, err := EncodeCESU8(s, 0)
	require.NoError(t, err)

	decoded, err := DecodeCESU8(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestCESU8_RoundTrip_SupplementaryPlane(t *testing.T) {
	t.Parallel()

	// U+1F600 (grinning face emoji) requires a surrogate pair in CESU-8.
	s := "a\U0001F600b"

	encoded, err := EncodeCESU8(s, 0)
	require.NoError(t, err)

	decoded, err := DecodeCESU8(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestCESU8_EncodesSupplementaryAsTwoSurrogates_NotFourByteUTF8(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeCESU8("\U0001F600", 0)
	require.NoError(t, err)

	// CESU-8 must never emit a 4-byte (0xF0-0xF4 lead) UTF-8 sequence.
	require.Len(t, encoded, 6, "supplementary code point should encode as two 3-byte surrogate sequences")
	assert.NotEqual(t, byte(0xF0), encoded[0]&0xF8, "must not use a 4-byte UTF-8 lead byte")

	// First half: high surrogate (0xD83D), second half: low surrogate (0xDE00).
	assert.Equal(t, byte(0xED), encoded[0])
	assert.Equal(t, byte(0xED), encoded[3])
}

func TestCESU8_DecodesSurrogatePair(t *testing.T) {
	t.Parallel()

	// Encode U+1F600 to its CESU-8 surrogate-pair bytes and confirm the
	// decoder recombines them.
	encoded, err := EncodeCESU8("\U0001F600", 0)
	require.NoError(t, err)

	decoded, err := DecodeCESU8(encoded)
	require.NoError(t, err)
	assert.Equal(t, "\U0001F600", decoded)
}

func TestCESU8_UnpairedHighSurrogate(t *testing.T) {
	t.Parallel()

	// A lone high-surrogate three-byte sequence (0xED 0xA0 0x80 = U+D800)
	// with nothing following it.
	_, err := DecodeCESU8([]byte{0xED, 0xA0, 0x80})
	assert.Error(t, err)
}

func TestCESU8_UnpairedLowSurrogate(t *testing.T) {
	t.Parallel()

	// A lone low-surrogate three-byte sequence (0xED 0xB0 0x80 = U+DC00).
	_, err := DecodeCESU8([]byte{0xED, 0xB0, 0x80})
	assert.Error(t, err)
}

func TestCESU8_EncodeWithPrefix(t *testing.T) {
	t.Parallel()

	buf, err := EncodeCESU8("abc", 5)
	require.NoError(t, err)
	require.Len(t, buf, 8)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 'a', 'b', 'c'}, buf)
}

func TestCESU8_TruncatedSequence(t *testing.T) {
	t.Parallel()

	_, err := DecodeCESU8([]byte{0xE4}) // 3-byte lead, nothing after it
	assert.Error(t, err)
}

func TestCESU8_EmptyString(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeCESU8("", 0)
	require.NoError(t, err)
	assert.Empty(t, encoded)

	decoded, err := DecodeCESU8(nil)
	require.NoError(t, err)
	assert.Equal(t, "", decoded)
}
