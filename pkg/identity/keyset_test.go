package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-root-secret-0123456789"

func claimsFor(sub, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	ks, err := NewDerivedKeySet(testSecret)
	if err != nil {
		t.Fatalf("new key set: %v", err)
	}

	signed, err := ks.Sign(context.Background(), claimsFor("alice", "MANAGER"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	token, err := jwt.Parse(signed, ks.KeyFunc())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !token.Valid {
		t.Fatal("token should be valid")
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != "alice" || claims["role"] != "MANAGER" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestOldTokensVerifyAcrossRotation(t *testing.T) {
	ks, err := NewDerivedKeySet(testSecret)
	if err != nil {
		t.Fatalf("new key set: %v", err)
	}
	old, err := ks.Sign(context.Background(), claimsFor("bob", "VP"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := ks.Rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := jwt.Parse(old, ks.KeyFunc()); err != nil {
		t.Fatalf("token signed before rotation should still verify: %v", err)
	}

	fresh, err := ks.Sign(context.Background(), claimsFor("bob", "VP"))
	if err != nil {
		t.Fatalf("sign after rotate: %v", err)
	}
	if fresh == old {
		t.Fatal("rotation should change the signing key")
	}
}

func TestRetiredKeyStopsVerifying(t *testing.T) {
	ks, err := NewDerivedKeySet(testSecret)
	if err != nil {
		t.Fatalf("new key set: %v", err)
	}
	old, err := ks.Sign(context.Background(), claimsFor("carol", "LEGAL"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Rotate the first key out of the window entirely.
	for i := 0; i < ks.window; i++ {
		if err := ks.Rotate(); err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
	}
	if _, err := jwt.Parse(old, ks.KeyFunc()); err == nil {
		t.Fatal("token under a retired key should fail verification")
	}
}

func TestRejectsForeignTokens(t *testing.T) {
	ks, err := NewDerivedKeySet(testSecret)
	if err != nil {
		t.Fatalf("new key set: %v", err)
	}

	// Signed with a different root secret but a plausible kid.
	other, err := NewDerivedKeySet("a-completely-different-root-secret")
	if err != nil {
		t.Fatalf("other key set: %v", err)
	}
	forged, err := other.Sign(context.Background(), claimsFor("mallory", "CFO"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := jwt.Parse(forged, ks.KeyFunc()); err == nil {
		t.Fatal("token from a foreign key set should fail verification")
	}

	// Token without a kid header.
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("mallory", "CFO"))
	signed, err := bare.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign bare: %v", err)
	}
	if _, err := jwt.Parse(signed, ks.KeyFunc()); err == nil {
		t.Fatal("token without kid should fail verification")
	}
}

func TestShortSecretRejected(t *testing.T) {
	if _, err := NewDerivedKeySet("short"); err == nil {
		t.Fatal("short root secret should be rejected")
	}
}
