package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"

	corepkiasn1 "github.com/silverline-ca/corepki/asn1"
	"github.com/silverline-ca/corepki/issuer"
)

func TestBadSignatureAlgorithmsRejectsWeakAlgorithms(t *testing.T) {
	for _, alg := range []x509.SignatureAlgorithm{
		x509.MD2WithRSA,
		x509.MD5WithRSA,
		x509.DSAWithSHA1,
		x509.DSAWithSHA256,
		x509.ECDSAWithSHA1,
		x509.UnknownSignatureAlgorithm,
	} {
		if !badSignatureAlgorithms[alg] {
			t.Fatalf("expected %v to be rejected", alg)
		}
	}
	if badSignatureAlgorithms[x509.ECDSAWithSHA256] {
		t.Fatalf("ECDSAWithSHA256 should not be rejected")
	}
	if badSignatureAlgorithms[x509.SHA256WithRSA] {
		t.Fatalf("SHA256WithRSA should not be rejected")
	}
}

func TestRejectWeakKeyIgnoresNonRSAKeys(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rejectWeakKey(&priv.PublicKey); err != nil {
		t.Fatalf("expected ECDSA key to pass the ROCA check untouched, got %v", err)
	}
}

func TestHexEncodeMatchesKnownVector(t *testing.T) {
	got := hexEncode([]byte{0xde, 0xad, 0xbe, 0xef})
	if got != "deadbeef" {
		t.Fatalf("expected deadbeef, got %s", got)
	}
}

func TestSubjectKeyIDIsStableForSameInput(t *testing.T) {
	a := subjectKeyID([]byte("spki-bytes"))
	b := subjectKeyID([]byte("spki-bytes"))
	if string(a) != string(b) {
		t.Fatalf("expected deterministic subject key id")
	}
	if len(a) != 20 {
		t.Fatalf("expected a 20-byte SHA-1 digest, got %d bytes", len(a))
	}
}

func TestVerifyPOPAcceptsValidSelfSignedCSR(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tmpl := &x509.CertificateRequest{Subject: pkix.Name{CommonName: "leaf.example.com"}, DNSNames: []string{"leaf.example.com"}}
	der, err := x509.CreateCertificateRequest(cryptorand.Reader, tmpl, priv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	csr, err := corepkiasn1.ParseCSR(der)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := verifyPOP(csr); err != nil {
		t.Fatalf("expected a validly self-signed CSR to pass POP verification, got %v", err)
	}
}

func TestVerifyPOPRejectsDhSigStaticWithEmptyAttribute(t *testing.T) {
	csr := corepkiasn1.ParsedCSR{CertificateRequest: &x509.CertificateRequest{}, HasDhSigStatic: true}
	if err := verifyPOP(csr); err == nil {
		t.Fatalf("expected an empty DhSigStatic attribute to be rejected")
	}
}

func TestGrantSubjectSortsByProfileOrderAndTruncates(t *testing.T) {
	requested := pkix.Name{Names: []pkix.AttributeTypeAndValue{
		{Type: rdnTypeOIDs["C"], Value: "US"},
		{Type: rdnTypeOIDs["O"], Value: "Example Corp"},
		{Type: rdnTypeOIDs["OU"], Value: "Eng"},
		{Type: rdnTypeOIDs["CN"], Value: "leaf.example.com"},
	}}

	profile := Profile{SubjectRDNOrder: []string{"CN", "OU", "O", "C"}, MaxSubjectRDNs: 3}
	granted := grantSubject(requested, profile)
	if len(granted.ExtraNames) != 3 {
		t.Fatalf("expected truncation to 3 RDNs, got %d", len(granted.ExtraNames))
	}
	if rdnTypeName(granted.ExtraNames[0].Type) != "CN" {
		t.Fatalf("expected CN first per profile order, got %+v", granted.ExtraNames[0])
	}
}

func TestDetermineValidityStrictRejectsOverlongRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profile := Profile{Validity: 24 * time.Hour, ValidityMode: ValidityModeStrict}
	req := IssuanceRequest{RequestedNotAfter: now.Add(48 * time.Hour), HasNotAfter: true}
	if _, _, err := determineValidity(&issuer.Identity{Cert: &x509.Certificate{}}, now, profile, req); err == nil {
		t.Fatalf("expected STRICT mode to reject a notAfter past the profile ceiling")
	}
}

func TestDetermineValidityLaxHonorsOverlongRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profile := Profile{Validity: 24 * time.Hour, ValidityMode: ValidityModeLax}
	requested := now.Add(48 * time.Hour)
	req := IssuanceRequest{RequestedNotAfter: requested, HasNotAfter: true}
	_, notAfter, err := determineValidity(&issuer.Identity{Cert: &x509.Certificate{}}, now, profile, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !notAfter.Equal(requested) {
		t.Fatalf("expected LAX mode to honor the request, got %v want %v", notAfter, requested)
	}
}

func TestDetermineValidityCutoffClampsToIssuerNotAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuerNotAfter := now.Add(36 * time.Hour)
	profile := Profile{Validity: 24 * time.Hour, ValidityMode: ValidityModeCutoff}
	req := IssuanceRequest{RequestedNotAfter: now.Add(48 * time.Hour), HasNotAfter: true}
	_, notAfter, err := determineValidity(&issuer.Identity{Cert: &x509.Certificate{NotAfter: issuerNotAfter}}, now, profile, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !notAfter.Equal(issuerNotAfter) {
		t.Fatalf("expected CUTOFF mode to clamp to the issuer's notAfter, got %v want %v", notAfter, issuerNotAfter)
	}
}

func TestDetermineValidityAppliesOffsetAndMidnightPolicy(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	profile := Profile{Validity: 24 * time.Hour, NotBeforeMidnightTZ: "UTC"}
	notBefore, _, err := determineValidity(&issuer.Identity{Cert: &x509.Certificate{}}, now, profile, IssuanceRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !notBefore.Equal(want) {
		t.Fatalf("expected midnight-backdated notBefore %v, got %v", want, notBefore)
	}
}

func TestCanonicalizeSPKIRejectsECKeyWithoutNamedCurve(t *testing.T) {
	if err := canonicalizeSPKI(&ecdsa.PublicKey{}); err == nil {
		t.Fatalf("expected an EC key with a nil curve to be rejected")
	}
}

func TestCanonicalizeSPKIAcceptsNamedCurveAndRSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := canonicalizeSPKI(&priv.PublicKey); err != nil {
		t.Fatalf("unexpected error for named-curve EC key: %v", err)
	}
	rsaPriv, err := rsa.GenerateKey(cryptorand.Reader, 2048)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := canonicalizeSPKI(&rsaPriv.PublicKey); err != nil {
		t.Fatalf("unexpected error for RSA key: %v", err)
	}
}

func TestPublicKeysEqual(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !publicKeysEqual(&priv.PublicKey, &priv.PublicKey) {
		t.Fatalf("expected a key to equal itself")
	}
	if publicKeysEqual(&priv.PublicKey, &other.PublicKey) {
		t.Fatalf("expected distinct keys to differ")
	}
}
