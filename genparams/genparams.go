package genparams

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/sage-x-project/corehub/uuidv7"
)

// initBytesSize is the total size of SignedGenParams.initBytes: a 6-byte
// notBefore millisecond timestamp followed by 74 bytes of random seed.
const initBytesSize = 6 + uuidv7.SeedSize

// SignedGenParams is the wire bundle handed to a client on connect: the
// raw init bytes plus an RSA-SHA256 signature over their base64 text.
type SignedGenParams struct {
	InitBytes [initBytesSize]byte
	Signature []byte
}

// Service mints and verifies SignedGenParams bundles under a single
// process-wide server keypair.
type Service struct {
	keypair *Keypair
}

// NewService returns a Service backed by kp.
func NewService(kp *Keypair) *Service {
	return &Service{keypair: kp}
}

// MintSigned draws 80 random bytes, stamps the leading 6 with the
// current millisecond timestamp, and signs the base64 text of the
// result under the server's private key.
func (s *Service) MintSigned() (SignedGenParams, error) {
	var bundle SignedGenParams
	if _, err := rand.Read(bundle.InitBytes[:]); err != nil {
		return SignedGenParams{}, err
	}
	stampNotBefore(&bundle.InitBytes, time.Now().UnixMilli())

	sig, err := s.sign(bundle.InitBytes)
	if err != nil {
		return SignedGenParams{}, err
	}
	bundle.Signature = sig
	return bundle, nil
}

// Verify checks bundle's signature against the server's public key.
func (s *Service) Verify(bundle SignedGenParams) bool {
	digest := sha256.Sum256(b64Text(bundle.InitBytes))
	err := rsa.VerifyPKCS1v15(s.keypair.public, crypto.SHA256, digest[:], bundle.Signature)
	return err == nil
}

// Decode reads the notBefore timestamp from bundle's leading 6 bytes and
// uses the remaining 74 bytes as the seed, returning the per-client
// generator state a verifier uses to reconstruct candidate UUIDs. It does not check the signature; callers
// should Verify (or have already verified) the bundle first.
func (s *Service) Decode(bundle SignedGenParams) *uuidv7.State {
	notBefore := notBeforeOf(bundle.InitBytes)

	state := &uuidv7.State{NotBefore: notBefore}
	copy(state.Seed[:], bundle.InitBytes[6:])
	return state
}

func (s *Service) sign(initBytes [initBytesSize]byte) ([]byte, error) {
	digest := sha256.Sum256(b64Text(initBytes))
	return rsa.SignPKCS1v15(rand.Reader, s.keypair.private, crypto.SHA256, digest[:])
}

// b64Text renders initBytes as its base64 text form, which is what the
// signature actually covers (per spec: "signature covers the base-64
// text of initBytes").
func b64Text(initBytes [initBytesSize]byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(initBytes[:]))
}

func stampNotBefore(b *[initBytesSize]byte, ms int64) {
	b[0] = byte(ms >> 40)
	b[1] = byte(ms >> 32)
	b[2] = byte(ms >> 24)
	b[3] = byte(ms >> 16)
	b[4] = byte(ms >> 8)
	b[5] = byte(ms)
}

func notBeforeOf(b [initBytesSize]byte) int64 {
	return int64(b[0])<<40 | int64(b[1])<<32 | int64(b[2])<<24 |
		int64(b[3])<<16 | int64(b[4])<<8 | int64(b[5])
}

// MarshalWire renders bundle in the base64 wire form used on the socket
// (SignedGenParams = {initBytesBase64, signatureBase64}).
func MarshalWire(bundle SignedGenParams) (initB64, sigB64 string) {
	return base64.StdEncoding.EncodeToString(bundle.InitBytes[:]), base64.StdEncoding.EncodeToString(bundle.Signature)
}

// UnmarshalWire parses the base64 wire form back into a SignedGenParams.
// It returns false if initB64 does not decode to exactly initBytesSize
// bytes.
func UnmarshalWire(initB64, sigB64 string) (SignedGenParams, bool) {
	initRaw, err := base64.StdEncoding.DecodeString(initB64)
	if err != nil || len(initRaw) != initBytesSize {
		return SignedGenParams{}, false
	}
	sigRaw, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return SignedGenParams{}, false
	}

	var bundle SignedGenParams
	copy(bundle.InitBytes[:], initRaw)
	bundle.Signature = sigRaw
	return bundle, true
}
