package uuidv7

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintDeterministicWithExplicitTSAndSeq(t *testing.T) {
	state := NewState([]byte("a fixed seed used across both mint calls for this test"))

	ts := int64(1_700_000_000_123)
	seq := 7

	a := Mint(state, &ts, &seq)
	b := Mint(state, &ts, &seq)

	assert.Equal(t, a, b, "Mint must be pure over (seed, ts, seq)")
	assert.True(t, a.IsV7())
	assert.Equal(t, ts, a.Timestamp())
	assert.Equal(t, seq, a.Sequence())
}

func TestMintDiffersOnDifferentSeed(t *testing.T) {
	ts := int64(1_700_000_000_123)
	seq := 7

	a := Mint(NewState([]byte("seed one")), &ts, &seq)
	b := Mint(NewState([]byte("seed two")), &ts, &seq)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a.Timestamp(), b.Timestamp())
	assert.Equal(t, a.Sequence(), b.Sequence())
}

func TestMintLiveClockIsMonotonicallyNonDecreasing(t *testing.T) {
	state := NewState([]byte("live seed"))

	var prev UUID
	for i := 0; i < 50; i++ {
		u := Mint(state, nil, nil)
		if i > 0 {
			assert.True(t, Compare(prev, u) <= 0, "mint %d: %s should not precede %s", i, u, prev)
		}
		prev = u
	}
}

func TestMintSequenceOverflowAdvancesTimestamp(t *testing.T) {
	// LastGenTS lies in the future so Mint stays on that millisecond
	// instead of moving to wall time, and the exhausted sequence forces
	// the rollover.
	const lastTS = int64(9_000_000_000_000)
	state := &State{LastGenTS: lastTS, LastGenSeq: 4095}
	u := Mint(state, nil, nil)

	assert.Equal(t, lastTS+1, u.Timestamp())
	assert.Equal(t, 0, u.Sequence())
}

func TestParseRoundTrip(t *testing.T) {
	ts := int64(1_700_000_000_123)
	seq := 42
	u := Mint(NewState([]byte("round trip seed")), &ts, &seq)

	parsed, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-uuid",
		"018f0000-0000-7000-8000-00000000000",   // too short
		"018f00000-000-7000-8000-000000000001",  // dash in wrong place
		"018f0000-0000-7000-8000-00000000000zz", // invalid hex + length
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "expected error for %q", c)
	}
}

func TestIsV7RejectsNonV7(t *testing.T) {
	var u UUID // all-zero, version 0
	assert.False(t, u.IsV7())
}

func TestIsV7RejectsRandomV4(t *testing.T) {
	foreign, err := Parse(uuid.New().String())
	require.NoError(t, err, "google/uuid must emit a 36-char hyphenated form Parse accepts")
	assert.False(t, foreign.IsV7(), "a v4 id must not be mistaken for a minted v7 id")

	minted := Mint(NewState([]byte("distinguish from v4 seed")), nil, nil)
	assert.NotEqual(t, foreign, minted)
	assert.True(t, minted.IsV7())
}

func TestCompareIsLexicographicOnHex(t *testing.T) {
	ts1 := int64(1_700_000_000_000)
	ts2 := int64(1_700_000_000_001)
	seq := 0

	a := Mint(NewState([]byte("s")), &ts1, &seq)
	b := Mint(NewState([]byte("s")), &ts2, &seq)

	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.Equal(t, 0, Compare(a, a))
	assert.True(t, a.String() < b.String())
}
