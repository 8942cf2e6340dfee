// Package crypto is the encryption gateway for recipient contact data.
//
// Ciphertexts are self-describing strings of the form
//
//	v1.<key id>.<base64url(nonce || sealed)>
//
// Each contact field gets its own subkey derived with HKDF-SHA256 from the
// master key, and the field name plus key id are bound as associated data,
// so a value cannot be replayed into another field or opened under a
// different key.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/groceryshare/backend/internal/domain/identity"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	formatVersion = "v1"
	// KeySize is the master key length in bytes
	KeySize = chacha20poly1305.KeySize
)

var (
	ErrInvalidKey   = errors.New("crypto: master key must be 32 bytes")
	ErrInvalidKeyID = errors.New("crypto: key id must be 1-32 characters of [A-Za-z0-9_-]")
	ErrMalformed    = errors.New("crypto: malformed ciphertext")
	ErrKeyMismatch  = errors.New("crypto: ciphertext was sealed under a different key")
	ErrOpen         = errors.New("crypto: ciphertext failed authentication")
)

// Gateway seals and opens contact fields under one master key.
// It is safe for concurrent use.
type Gateway struct {
	keyID  string
	master []byte

	mu    sync.RWMutex
	aeads map[identity.ContactField]aeadCipher
	rand  io.Reader
}

type aeadCipher interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewGateway creates a gateway for the given key id and raw master key
func NewGateway(keyID string, master []byte) (*Gateway, error) {
	if !validKeyID(keyID) {
		return nil, ErrInvalidKeyID
	}
	if len(master) != KeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, KeySize)
	copy(key, master)
	return &Gateway{
		keyID:  keyID,
		master: key,
		aeads:  make(map[identity.ContactField]aeadCipher, 3),
		rand:   rand.Reader,
	}, nil
}

// NewGatewayFromBase64 decodes a standard base64 master key
func NewGatewayFromBase64(keyID, encoded string) (*Gateway, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode master key: %w", err)
	}
	return NewGateway(keyID, raw)
}

// GenerateKey returns a fresh random master key, base64 encoded
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// KeyID implements identity.ContactCipher
func (g *Gateway) KeyID() string {
	return g.keyID
}

// Seal implements identity.ContactCipher
func (g *Gateway) Seal(field identity.ContactField, plaintext string) (string, error) {
	aead, err := g.aeadFor(field)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(g.rand, nonce); err != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), g.associatedData(field))
	return formatVersion + "." + g.keyID + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open implements identity.ContactCipher
func (g *Gateway) Open(field identity.ContactField, ciphertext string) (string, error) {
	keyID, payload, err := Parse(ciphertext)
	if err != nil {
		return "", err
	}
	if keyID != g.keyID {
		return "", fmt.Errorf("%w: %s", ErrKeyMismatch, keyID)
	}
	aead, err := g.aeadFor(field)
	if err != nil {
		return "", err
	}
	if len(payload) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, sealed := payload[:aead.NonceSize()], payload[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, g.associatedData(field))
	if err != nil {
		return "", ErrOpen
	}
	return string(plain), nil
}

// Parse splits a ciphertext into its key id and raw payload
func Parse(ciphertext string) (keyID string, payload []byte, err error) {
	parts := strings.SplitN(ciphertext, ".", 3)
	if len(parts) != 3 || parts[0] != formatVersion || !validKeyID(parts[1]) {
		return "", nil, ErrMalformed
	}
	payload, err = base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", nil, ErrMalformed
	}
	return parts[1], payload, nil
}

// KeyIDOf returns the key id a ciphertext was sealed under
func KeyIDOf(ciphertext string) (string, error) {
	keyID, _, err := Parse(ciphertext)
	return keyID, err
}

func (g *Gateway) associatedData(field identity.ContactField) []byte {
	return []byte("groceryshare/contact/" + string(field) + "/" + g.keyID)
}

func (g *Gateway) aeadFor(field identity.ContactField) (aeadCipher, error) {
	switch field {
	case identity.FieldAddress, identity.FieldPhone, identity.FieldNotes:
	default:
		return nil, fmt.Errorf("crypto: unknown contact field %q", field)
	}

	g.mu.RLock()
	aead, ok := g.aeads[field]
	g.mu.RUnlock()
	if ok {
		return aead, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if aead, ok := g.aeads[field]; ok {
		return aead, nil
	}
	subkey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, g.master, []byte(g.keyID), []byte("contact:"+string(field)))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("crypto: derive subkey: %w", err)
	}
	x, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	g.aeads[field] = x
	return x, nil
}

func validKeyID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

var _ identity.ContactCipher = (*Gateway)(nil)
