package ocsp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/silverline-ca/corepki/hashsig"
)

func TestSignatureAlgorithmOID(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ec key: %v", err)
	}

	oid, err := signatureAlgorithmOID(&rsaKey.PublicKey, hashsig.SHA256)
	if err != nil || !oid.Equal([]int{1, 2, 840, 113549, 1, 1, 11}) {
		t.Fatalf("expected sha256WithRSAEncryption, got %v (err=%v)", oid, err)
	}

	oid, err = signatureAlgorithmOID(&ecKey.PublicKey, hashsig.SHA256)
	if err != nil || !oid.Equal([]int{1, 2, 840, 10045, 4, 3, 2}) {
		t.Fatalf("expected ecdsa-with-SHA256, got %v (err=%v)", oid, err)
	}

	if _, err := signatureAlgorithmOID("not-a-key", hashsig.SHA256); err == nil {
		t.Fatalf("expected unsupported key type to fail")
	}
}

func TestEncodeBasicOCSPResponseContainsTBSAndSignature(t *testing.T) {
	tbs := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	sig := []byte{0xAA, 0xBB, 0xCC}
	oid, _ := signatureAlgorithmOID(&ecdsaPub(t).PublicKey, hashsig.SHA256)
	out := encodeBasicOCSPResponse(tbs, oid, sig)
	if len(out) == 0 {
		t.Fatalf("expected non-empty encoding")
	}
}

func ecdsaPub(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestMalformedAndUnauthorizedResponsesAreValidDER(t *testing.T) {
	m := malformedRequestResponse()
	u := unauthorizedResponse()
	if len(m) == 0 || m[0] != 0x30 {
		t.Fatalf("expected malformed response to start with a SEQUENCE tag")
	}
	if len(u) == 0 || u[0] != 0x30 {
		t.Fatalf("expected unauthorized response to start with a SEQUENCE tag")
	}
	if string(m) == string(u) {
		t.Fatalf("expected distinct status codes for malformed vs unauthorized")
	}
}

func TestNoopCache(t *testing.T) {
	var c Cache = noopCache{}
	if _, ok, err := c.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("expected noop cache miss, got ok=%v err=%v", ok, err)
	}
	c.Set(context.Background(), "k", []byte("v"), time.Minute) // must not panic
}
