package codec

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaintext(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want bool
	}{
		{"empty", nil, true},
		{"short binary", []byte{0, 1, 2, 255}, true},
		{"99 bytes of nul", make([]byte, 99), true},
		{"100 printable", bytes.Repeat([]byte("a"), 100), true},
		{"100 bytes with newline", append(bytes.Repeat([]byte("a"), 99), '\n'), false},
		{"150 bytes with one DEL", append(bytes.Repeat([]byte("~"), 149), 127), false},
		{"printable edges", bytes.Repeat([]byte{32, 126}, 60), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaintext(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	t.Run("text passes through", func(t *testing.T) {
		assert.Equal(t, "hello", Encode([]byte("hello")))
	})

	t.Run("binary is tagged", func(t *testing.T) {
		in := append(bytes.Repeat([]byte("x"), 120), 0x00)
		out := Encode(in)
		require.True(t, strings.HasPrefix(out, Prefix))
		assert.NotContains(t, out, "\n")
	})
}

func TestDecode(t *testing.T) {
	t.Run("untagged is utf8", func(t *testing.T) {
		b, err := Decode("héllo")
		require.NoError(t, err)
		assert.Equal(t, []byte("héllo"), b)
	})

	t.Run("tagged with line breaks", func(t *testing.T) {
		b, err := Decode("Base64:aGVs\nbG8=\r\n")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), b)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := Decode("Base64:***")
		assert.Error(t, err)
	})
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 99, 100, 101, 150, 4096} {
		b := make([]byte, n)
		rng.Read(b)
		got, err := Decode(Encode(b))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(b, got), "size %d", n)
	}

	t.Run("text that looks tagged", func(t *testing.T) {
		in := []byte("Base64:not really")
		got, err := Decode(Encode(in))
		require.NoError(t, err)
		assert.Equal(t, in, got)
	})
}
