package bootstrap

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/silverline-ca/corepki/config"
)

func TestCAIDByNameFindsConfiguredCA(t *testing.T) {
	cfg := &config.Config{CAs: []config.CAConfig{
		{Name: "root-ca", CAID: 1},
		{Name: "intermediate-ca", CAID: 2},
	}}
	cac, err := CAIDByName(cfg, "intermediate-ca")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cac.CAID != 2 {
		t.Fatalf("expected CAID 2, got %d", cac.CAID)
	}
}

func TestCAIDByNameRejectsUnknownName(t *testing.T) {
	cfg := &config.Config{CAs: []config.CAConfig{{Name: "root-ca", CAID: 1}}}
	if _, err := CAIDByName(cfg, "no-such-ca"); err == nil {
		t.Fatalf("expected an error for an unconfigured CA name")
	}
}

func TestParsePrivateKeyPEMParsesPKCS8(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	signer, err := ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM: %v", err)
	}
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Fatalf("parsed key does not match the original")
	}
}

func TestParsePrivateKeyPEMParsesSEC1(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	signer, err := ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM: %v", err)
	}
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Fatalf("parsed key does not match the original")
	}
}

func TestParsePrivateKeyPEMRejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKeyPEM([]byte("not pem at all")); err == nil {
		t.Fatalf("expected an error for non-PEM input")
	}
}
