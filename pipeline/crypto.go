package pipeline

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/meshline/msgline/cmn"
)

// Encrypter is the external collaborator boundary for the encrypt/decrypt
// stages (spec §1 "pure byte-array transformers"). Key and IV are supplied
// per call rather than held on the implementation, since they are
// per-session (established during the §5 handshake) while a single
// Encrypter is shared across every session's pipeline.
type Encrypter interface {
	Seal(key, iv, plaintext []byte) ([]byte, error)
	Open(key, iv, ciphertext []byte) ([]byte, error)
}

// ChaChaEncrypter is the stock encrypter. The teacher never shipped an
// at-rest cipher; ChaCha20-Poly1305 is adopted from x/crypto, already a
// direct teacher dependency via transport's key-exchange path.
type ChaChaEncrypter struct{}

func (ChaChaEncrypter) Seal(key, iv, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, cmn.NewErr(cmn.KindCrypto, err, "new aead")
	}
	if len(iv) != chacha20poly1305.NonceSize {
		return nil, cmn.NewErr(cmn.KindCrypto, nil, "iv must be %d bytes, got %d", chacha20poly1305.NonceSize, len(iv))
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

func (ChaChaEncrypter) Open(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, cmn.NewErr(cmn.KindCrypto, err, "new aead")
	}
	pt, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, cmn.NewErr(cmn.KindCrypto, err, "open (authentication failed)")
	}
	return pt, nil
}

// NopEncrypter is the identity transform for encrypt_mode disabled sessions;
// it still occupies its stage's slot in the chain (spec §4.3).
type NopEncrypter struct{}

func (NopEncrypter) Seal(_, _, plaintext []byte) ([]byte, error)   { return plaintext, nil }
func (NopEncrypter) Open(_, _, ciphertext []byte) ([]byte, error)  { return ciphertext, nil }

// GenerateKeyIV mints a fresh key/nonce pair for a session's confirm_connection
// handshake reply (spec §5 "server picks key, iv").
func GenerateKeyIV() (key, iv []byte, err error) {
	key = make([]byte, chacha20poly1305.KeySize)
	iv = make([]byte, chacha20poly1305.NonceSize)
	if _, err = rand.Read(key); err != nil {
		return nil, nil, cmn.NewErr(cmn.KindCrypto, err, "generate key")
	}
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, cmn.NewErr(cmn.KindCrypto, err, "generate iv")
	}
	return key, iv, nil
}
