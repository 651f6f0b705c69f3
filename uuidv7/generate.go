package uuidv7

import (
	"sync"
	"time"

	"github.com/sage-x-project/corehub/sha256"
)

// SeedSize is the number of pseudo-random seed bytes carried by a State.
// It matches the 74 bytes of SignedGenParams.initBytes left over once the
// leading 6-byte notBefore timestamp is stripped.
const SeedSize = 74

// State is the per-generator input to Mint: a seed for the pseudo-random
// fill, plus the last timestamp/sequence pair handed out, used both to
// keep a live generator monotonic and to let a verifier reconstruct a
// candidate UUID deterministically from a claimed (ts, seq) pair.
type State struct {
	mu sync.Mutex

	Seed       [SeedSize]byte
	NotBefore  int64 // ms; informational lower bound, not enforced by Mint
	LastGenTS  int64
	LastGenSeq int
}

// NewState returns a State seeded with the given bytes (truncated or
// zero-padded to SeedSize) and no prior mint history.
func NewState(seed []byte) *State {
	s := &State{}
	n := copy(s.Seed[:], seed)
	_ = n
	return s
}

// Mint produces a UUIDv7. When ts and seq are both non-nil, the result is
// a pure function of (state.Seed, *ts, *seq) — calling it twice with the
// same inputs yields byte-identical output, which is what lets a verifier
// reconstruct a client-claimed id. When either is nil, Mint instead
// advances the generator's own clock: it uses wall time (never earlier
// than state.LastGenTS), bumping the sequence within the same millisecond
// and rolling the millisecond forward if the 12-bit sequence would
// overflow.
func Mint(state *State, ts *int64, seq *int) UUID {
	if ts != nil && seq != nil {
		return build(state.Seed, *ts, *seq)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	now := time.Now().UnixMilli()
	useTS := now
	if useTS < state.LastGenTS {
		useTS = state.LastGenTS
	}

	var useSeq int
	if useTS == state.LastGenTS {
		useSeq = state.LastGenSeq + 1
		if useSeq >= 4096 {
			useTS++
			useSeq = 0
		}
	} else {
		useSeq = 0
	}

	state.LastGenTS = useTS
	state.LastGenSeq = useSeq

	return build(state.Seed, useTS, useSeq)
}

// build encodes the timestamp and sequence into bytes 0-7 per the wire
// layout and fills bytes 8-15 with a pseudo-random value derived from
// SHA-256(seed XOR ts XOR seq), setting the version and variant bits.
func build(seed [SeedSize]byte, ts int64, seq int) UUID {
	var u UUID

	u[0] = byte(ts >> 40)
	u[1] = byte(ts >> 32)
	u[2] = byte(ts >> 24)
	u[3] = byte(ts >> 16)
	u[4] = byte(ts >> 8)
	u[5] = byte(ts)
	u[6] = 0x70 | byte(seq>>8)&0x0f
	u[7] = byte(seq)

	digest := randomFill(seed, ts, seq)
	copy(u[8:], digest[:8])
	u[8] = (u[8] & 0x3f) | 0x80 // variant 10

	return u
}

// randomFill XORs the (ts, seq) pair cyclically into a copy of seed and
// hashes the result, producing the pseudo-random material for bytes 8-15.
func randomFill(seed [SeedSize]byte, ts int64, seq int) [32]byte {
	var tsSeq [8]byte
	tsSeq[0] = byte(ts >> 40)
	tsSeq[1] = byte(ts >> 32)
	tsSeq[2] = byte(ts >> 24)
	tsSeq[3] = byte(ts >> 16)
	tsSeq[4] = byte(ts >> 8)
	tsSeq[5] = byte(ts)
	tsSeq[6] = byte(seq >> 8)
	tsSeq[7] = byte(seq)

	mixed := seed
	for i := range mixed {
		mixed[i] ^= tsSeq[i%len(tsSeq)]
	}

	return sha256.Sum256(mixed[:])
}
