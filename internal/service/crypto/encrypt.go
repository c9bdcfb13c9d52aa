package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	// EncryptionKeySize is the AES-256 key length in bytes.
	EncryptionKeySize = 32
	ivSize            = aes.BlockSize
)

var (
	ErrInvalidKeySize        = errors.New("invalid key size: must be 32 bytes for AES-256")
	ErrInvalidSigningKeySize = errors.New("invalid signing key size: must be 32, 48 or 64 bytes")
	ErrMalformedToken        = errors.New("malformed token")
	ErrSignatureMismatch     = errors.New("signature mismatch")
	ErrDecryptionFailed      = errors.New("decryption failed")
)

// Keys holds the process-wide secrets used by the cookie codec.
// They must stay stable for the lifetime of the process; rotating them
// invalidates every cookie already issued.
type Keys struct {
	// Encryption is the AES-256 key.
	Encryption []byte
	// Signing is the HMAC key. Its length selects SHA-256, SHA-384 or SHA-512.
	Signing []byte
	// StateSalt keys the OAuth state hash. Falls back to Signing when empty.
	StateSalt []byte
}

// Codec seals cookie payloads with AES-256-CBC and an encrypt-then-MAC HMAC.
//
// Token layout before transport encoding:
//
//	hex(hmac(iv || ciphertext)) ":" hex(iv) ":" hex(ciphertext)
//
// The whole string is then base64 encoded so it can travel in a cookie.
// Codec is safe for concurrent use.
type Codec struct {
	block     cipher.Block
	signKey   []byte
	stateSalt []byte
	newHash   func() hash.Hash
}

// NewCodec creates a codec from the given keys.
func NewCodec(keys Keys) (*Codec, error) {
	if len(keys.Encryption) != EncryptionKeySize {
		return nil, ErrInvalidKeySize
	}

	newHash, err := hashForKey(keys.Signing)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(keys.Encryption)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	salt := keys.StateSalt
	if len(salt) == 0 {
		salt = keys.Signing
	}

	return &Codec{
		block:     block,
		signKey:   bytes.Clone(keys.Signing),
		stateSalt: bytes.Clone(salt),
		newHash:   newHash,
	}, nil
}

func hashForKey(key []byte) (func() hash.Hash, error) {
	switch len(key) * 8 {
	case 256:
		return sha256.New, nil
	case 384:
		return sha512.New384, nil
	case 512:
		return sha512.New, nil
	default:
		return nil, ErrInvalidSigningKeySize
	}
}

// EncryptAndSign encrypts plaintext, signs it and returns the base64 cookie token.
func (c *Codec) EncryptAndSign(plaintext string) (string, error) {
	iv, err := GenerateRandomBytes(ivSize)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	sig := c.sign(iv, ciphertext)
	token := hex.EncodeToString(sig) + ":" + hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)

	return base64.StdEncoding.EncodeToString([]byte(token)), nil
}

// ValidateAndDecrypt reverses EncryptAndSign. Any malformed, tampered or
// undecryptable token yields ok == false; no error is ever surfaced.
func (c *Codec) ValidateAndDecrypt(token string) (plaintext string, ok bool) {
	out, err := c.open(token)
	if err != nil {
		return "", false
	}
	return out, true
}

func (c *Codec) open(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return "", ErrMalformedToken
	}

	sig, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedToken
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedToken
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrMalformedToken
	}

	if !hmac.Equal(sig, c.sign(iv, ciphertext)) {
		return "", ErrSignatureMismatch
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// HashState returns the hex HMAC-SHA256 of a nonce. The result is sent to
// identity providers as the OAuth state instead of the raw nonce.
func (c *Codec) HashState(nonce string) string {
	mac := hmac.New(sha256.New, c.stateSalt)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyState reports whether state is the hash of nonce, in constant time.
func (c *Codec) VerifyState(nonce, state string) bool {
	return SecureCompare(c.HashState(nonce), state)
}

func (c *Codec) sign(iv, ciphertext []byte) []byte {
	mac := hmac.New(c.newHash, c.signKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, ErrDecryptionFailed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}

// GenerateKey generates a random 32-byte key for AES-256
func GenerateKey() ([]byte, error) {
	return GenerateRandomBytes(EncryptionKeySize)
}

// GenerateKeys creates a fresh key set with SHA-256 signing.
func GenerateKeys() (Keys, error) {
	enc, err := GenerateKey()
	if err != nil {
		return Keys{}, err
	}
	sig, err := GenerateRandomBytes(32)
	if err != nil {
		return Keys{}, err
	}
	return Keys{Encryption: enc, Signing: sig}, nil
}

// DecodeKey accepts a hex or base64 encoded key, or raw bytes as a last resort.
func DecodeKey(s string) []byte {
	if b, err := hex.DecodeString(s); err == nil && len(b) > 0 {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
		return b
	}
	return []byte(s)
}
