package issuer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/silverline-ca/corepki/hashsig"
)

func selfSignedCA(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

func TestNewIdentityAndMatches(t *testing.T) {
	cert := selfSignedCA(t, "Test Root CA")
	id, err := NewIdentity("root", 1, cert, nil, []hashsig.Algorithm{hashsig.SHA1, hashsig.SHA256})
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	nameHash, ok := id.NameHash(hashsig.SHA1)
	if !ok || len(nameHash) != 20 {
		t.Fatalf("expected 20-byte SHA-1 name hash, got %d bytes (ok=%v)", len(nameHash), ok)
	}
	keyHash, ok := id.KeyHash(hashsig.SHA1)
	if !ok || len(keyHash) != 20 {
		t.Fatalf("expected 20-byte SHA-1 key hash, got %d bytes (ok=%v)", len(keyHash), ok)
	}
	if !id.Matches(hashsig.SHA1, nameHash, keyHash) {
		t.Fatalf("expected identity to match its own hashes")
	}
	if id.Matches(hashsig.SHA1, nameHash, []byte("wrong")) {
		t.Fatalf("expected mismatched key hash to fail")
	}
	if _, ok := id.NameHash(hashsig.SHA512); ok {
		t.Fatalf("expected SHA512 to be absent since it wasn't requested")
	}
}

func TestTableRegisterLookupAndFindByHash(t *testing.T) {
	tbl := NewTable()
	certA := selfSignedCA(t, "CA A")
	certB := selfSignedCA(t, "CA B")
	idA, err := NewIdentity("a", 1, certA, nil, []hashsig.Algorithm{hashsig.SHA256})
	if err != nil {
		t.Fatalf("NewIdentity a: %v", err)
	}
	idB, err := NewIdentity("b", 2, certB, nil, []hashsig.Algorithm{hashsig.SHA256})
	if err != nil {
		t.Fatalf("NewIdentity b: %v", err)
	}
	tbl.Register(idA)
	tbl.Register(idB)

	got, err := tbl.Lookup("a")
	if err != nil || got != idA {
		t.Fatalf("expected to find identity a, err=%v", err)
	}

	nameHash, _ := idB.NameHash(hashsig.SHA256)
	keyHash, _ := idB.KeyHash(hashsig.SHA256)
	found, err := tbl.FindByHash(hashsig.SHA256, nameHash, keyHash)
	if err != nil || found != idB {
		t.Fatalf("expected FindByHash to resolve identity b, err=%v", err)
	}

	if _, err := tbl.Lookup("missing"); err == nil {
		t.Fatalf("expected lookup of unknown name to fail")
	}

	if names := tbl.Names(); len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %d", len(names))
	}
}
