// Package genparams mints and verifies the signed UUIDv7 generation
// parameters handed to each client: an 80-byte seed bundle, timestamped
// and signed under the server's RSA keypair, that the server can later
// use to reconstruct — and thereby verify — a client-claimed UUIDv7.
package genparams

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// keyBits is the RSA modulus size used for freshly generated server
// keypairs, per spec.
const keyBits = 4096

// ErrInvalidSignature names the case of a bundle whose signature does
// not check out against the server's public key. Service.Verify reports
// that case by returning false and does not return this error.
var ErrInvalidSignature = errors.New("genparams: invalid signature")

// Keypair is the process-wide server keypair used to sign and verify
// generation-parameter bundles. It is immutable once constructed and
// safe for concurrent use.
type Keypair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// NewKeypair generates a fresh 4096-bit RSA keypair.
func NewKeypair() (*Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("genparams: generate keypair: %w", err)
	}
	return &Keypair{private: priv, public: &priv.PublicKey}, nil
}

// keypairFile is the on-disk JSON layout for a persisted keypair, per
// spec §6.3: PEM-encoded public and private keys.
type keypairFile struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// LoadOrCreateKeypair reads a keypair from path if present, or generates
// a fresh one and persists it to path if absent. The path is supplied by
// the caller (e.g. from configuration) rather than derived from the
// running binary's location.
func LoadOrCreateKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		kp, genErr := NewKeypair()
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := kp.save(path); saveErr != nil {
			return nil, saveErr
		}
		return kp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("genparams: read keypair file: %w", err)
	}

	var f keypairFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("genparams: decode keypair file: %w", err)
	}
	return decodeKeypair(f)
}

func (kp *Keypair) save(path string) error {
	f, err := kp.encode()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("genparams: encode keypair file: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (kp *Keypair) encode() (keypairFile, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(kp.private)
	if err != nil {
		return keypairFile{}, fmt.Errorf("genparams: marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(kp.public)
	if err != nil {
		return keypairFile{}, fmt.Errorf("genparams: marshal public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return keypairFile{PublicKey: string(pubPEM), PrivateKey: string(privPEM)}, nil
}

func decodeKeypair(f keypairFile) (*Keypair, error) {
	privBlock, _ := pem.Decode([]byte(f.PrivateKey))
	if privBlock == nil {
		return nil, errors.New("genparams: no PEM block in privateKey")
	}
	privAny, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("genparams: parse private key: %w", err)
	}
	priv, ok := privAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("genparams: private key is not RSA")
	}

	pubBlock, _ := pem.Decode([]byte(f.PublicKey))
	if pubBlock == nil {
		return nil, errors.New("genparams: no PEM block in publicKey")
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("genparams: parse public key: %w", err)
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("genparams: public key is not RSA")
	}

	return &Keypair{private: priv, public: pub}, nil
}
