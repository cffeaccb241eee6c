// Package identity manages the signing keys behind API bearer tokens.
package identity

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// hkdfSalt domain-separates token keys from any other use of the root
// secret.
var hkdfSalt = []byte("pactum/token-keys/v1")

// KeySet signs tokens with the current key and verifies tokens signed
// by any key still in the rotation window.
type KeySet interface {
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
	KeyFunc() jwt.Keyfunc
}

// DerivedKeySet derives one HMAC-SHA256 key per key id from a single
// root secret with HKDF. Rotation mints a new key id; the root secret
// never signs anything directly, and old tokens verify until their key
// falls out of the window.
type DerivedKeySet struct {
	mu      sync.RWMutex
	root    []byte
	current string
	keys    map[string][]byte
	order   []string
	window  int
}

// NewDerivedKeySet builds a key set from the root secret and mints the
// first key.
func NewDerivedKeySet(rootSecret string) (*DerivedKeySet, error) {
	if len(rootSecret) < 16 {
		return nil, fmt.Errorf("root secret is %d bytes, need at least 16", len(rootSecret))
	}
	ks := &DerivedKeySet{
		root:   []byte(rootSecret),
		keys:   make(map[string][]byte),
		window: 4,
	}
	if err := ks.Rotate(); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *DerivedKeySet) derive(kid string) ([]byte, error) {
	r := hkdf.New(sha256.New, ks.root, hkdfSalt, []byte(kid))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key %s: %w", kid, err)
	}
	return key, nil
}

// Rotate mints a new current key. Keys older than the rotation window
// stop verifying.
func (ks *DerivedKeySet) Rotate() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	kid := fmt.Sprintf("k%d", time.Now().UnixNano())
	key, err := ks.derive(kid)
	if err != nil {
		return err
	}
	ks.keys[kid] = key
	ks.order = append(ks.order, kid)
	ks.current = kid

	for len(ks.order) > ks.window {
		delete(ks.keys, ks.order[0])
		ks.order = ks.order[1:]
	}
	return nil
}

// Sign issues an HS256 token under the current key.
func (ks *DerivedKeySet) Sign(ctx context.Context, claims jwt.Claims) (string, error) {
	ks.mu.RLock()
	kid := ks.current
	key := ks.keys[kid]
	ks.mu.RUnlock()
	if key == nil {
		return "", fmt.Errorf("no active signing key")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

// KeyFunc resolves the verification key from the token's kid header.
// Unknown or retired kids fail verification.
func (ks *DerivedKeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token has no kid header")
		}

		ks.mu.RLock()
		defer ks.mu.RUnlock()
		key, ok := ks.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %s", kid)
		}
		return key, nil
	}
}
