package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func testKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	return pub, priv
}

func TestMintParseEd25519(t *testing.T) {
	pub, priv := testKeys(t)

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "gorefresh-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Mint("u-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "u-1" || claims.Subject != "u-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
	if claims.Issuer != "gorefresh-test" {
		t.Fatalf("unexpected issuer: %q", claims.Issuer)
	}
}

func TestMintParseHS256(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Mint("u-2")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "u-2" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	_, privA := testKeys(t)
	pubB, _ := testKeys(t)

	minter, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
	})
	if err != nil {
		t.Fatalf("minter: %v", err)
	}
	verifier, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
		PublicKey:     pubB,
	})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	tok, err := minter.Mint("u-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	_, priv := testKeys(t)

	m, err := NewManager(Config{
		AccessTTL:     time.Millisecond,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Mint("u-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	_, priv := testKeys(t)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodEd25519, PrivateKey: priv}},
		{"bad method", Config{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: priv}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 bad key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("short")}},
		{"excessive leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, Leeway: time.Hour}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}
