package sha256

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum256KnownVectors(t *testing.T) {
	cases := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"the quick brown fox jumps over the lazy dog": "05c6e08f1d9fdafa03147fcb8f82f124c76d2f70e3d989dc8aadb5e7d7450bec",
	}

	for in, want := range cases {
		got := Sum256([]byte(in))
		wantBytes, err := hex.DecodeString(want)
		require.NoError(t, err)
		assert.Equal(t, wantBytes, got[:], "Sum256(%q)", in)
	}
}

func TestSum256Deterministic(t *testing.T) {
	in := []byte("the quick brown fox jumps over the lazy dog")
	a := Sum256(in)
	b := Sum256(in)
	assert.Equal(t, a, b)
}

func TestSum256DiffersOnInputChange(t *testing.T) {
	a := Sum256([]byte("alpha"))
	b := Sum256([]byte("alphb"))
	assert.NotEqual(t, a, b)
}
