// Package issuer maintains the issuer-identity table spec.md §4.5
// describes: for each configured CA, the precomputed identity hashes
// (issuer name hash, issuer key hash under every OCSP-relevant digest
// algorithm) that both CRL and OCSP responses embed, plus the signer
// pool issuance draws from. Grounds on boulder's ca.internalIssuer /
// ca.CertificateAuthorityImpl construction (ca/certificate-authority.go),
// generalized from "one CA" to "a table of named CAs."
package issuer

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"sync"

	"github.com/silverline-ca/corepki/hashsig"
	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/signer"
)

// Identity is the precomputed, immutable identity of one issuing CA:
// its certificate, its raw subject and SubjectPublicKeyInfo bytes, and
// the issuer-name/issuer-key hash under every digest algorithm an OCSP
// CertID or Authority Key Identifier might need (spec.md §4.5, §4.9's
// CertID matching rule).
type Identity struct {
	Name    string
	CAID    int64
	Cert    *x509.Certificate
	Subject pkix.RDNSequence

	// spkiDER is the DER encoding of subjectPublicKeyInfo as it appears
	// in Cert; issuerKeyHash is computed over the public key BIT STRING
	// inside it, not over these bytes.
	spkiDER []byte

	nameHash map[hashsig.Algorithm][]byte
	keyHash  map[hashsig.Algorithm][]byte

	Signers *signer.Pool
}

// NewIdentity precomputes every hash Table.Lookup-adjacent code will
// need at request time, so OCSP and CRL signing never hash on the hot
// path (spec.md §4.9 "issuer matching must not require re-parsing the
// issuer certificate per request").
func NewIdentity(name string, caID int64, cert *x509.Certificate, signers *signer.Pool, algs []hashsig.Algorithm) (*Identity, error) {
	if cert == nil {
		return nil, pkierrors.BadRequestError("issuer: nil certificate for identity %q", name)
	}
	id := &Identity{
		Name:     name,
		CAID:     caID,
		Cert:     cert,
		Subject:  cert.Subject.ToRDNSequence(),
		spkiDER:  cert.RawSubjectPublicKeyInfo,
		nameHash: make(map[hashsig.Algorithm][]byte, len(algs)),
		keyHash:  make(map[hashsig.Algorithm][]byte, len(algs)),
		Signers:  signers,
	}
	for _, alg := range algs {
		h, ok := hashsig.New(alg)
		if !ok {
			return nil, pkierrors.SystemFailureError("issuer: unknown hash algorithm %v for identity %q", alg, name)
		}
		h.Write(cert.RawSubject)
		id.nameHash[alg] = h.Sum(nil)

		h, ok = hashsig.New(alg)
		if !ok {
			return nil, pkierrors.SystemFailureError("issuer: unknown hash algorithm %v for identity %q", alg, name)
		}
		// RFC 6960 CertID.issuerKeyHash is the hash of the issuer's
		// public key bit-string contents, not the full SPKI structure.
		h.Write(publicKeyBitString(cert))
		id.keyHash[alg] = h.Sum(nil)
	}
	return id, nil
}

// publicKeyBitString extracts the contents of the SubjectPublicKeyInfo's
// BIT STRING (the key bits without the ASN.1 SEQUENCE/AlgorithmIdentifier
// wrapper), per RFC 6960 §4.2.1's issuerKeyHash definition.
func publicKeyBitString(cert *x509.Certificate) []byte {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		// Fall back to hashing the full SPKI; callers compare
		// consistently hashed values, so this only matters if
		// RawSubjectPublicKeyInfo is malformed, which ParseCertificate
		// would already have rejected.
		return cert.RawSubjectPublicKeyInfo
	}
	return spki.PublicKey.Bytes
}

// NameHash returns the precomputed issuer-name hash under alg, and
// whether that algorithm was configured for this identity.
func (id *Identity) NameHash(alg hashsig.Algorithm) ([]byte, bool) {
	h, ok := id.nameHash[alg]
	return h, ok
}

// KeyHash returns the precomputed issuer-key hash under alg.
func (id *Identity) KeyHash(alg hashsig.Algorithm) ([]byte, bool) {
	h, ok := id.keyHash[alg]
	return h, ok
}

// Matches reports whether a requested (nameHash, keyHash, alg) tuple
// identifies this issuer, the core of CertID matching (spec.md §4.9).
func (id *Identity) Matches(alg hashsig.Algorithm, nameHash, keyHash []byte) bool {
	wantName, ok := id.NameHash(alg)
	if !ok || !bytesEqual(wantName, nameHash) {
		return false
	}
	wantKey, ok := id.KeyHash(alg)
	if !ok {
		return false
	}
	return bytesEqual(wantKey, keyHash)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Table is the in-memory registry of Identity values, addressed by
// name, that every issuance, revocation, CRL, and OCSP request consults
// to find the right signer and identity hashes (spec.md §4.5).
type Table struct {
	mu   sync.RWMutex
	byID map[string]*Identity
}

// NewTable returns an empty issuer table.
func NewTable() *Table {
	return &Table{byID: make(map[string]*Identity)}
}

// Register adds or replaces the identity for name. Replacing an
// identity that has borrowed signers outstanding is the caller's
// responsibility to sequence safely; Register does no rotation
// coordination of its own.
func (t *Table) Register(id *Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[id.Name] = id
}

// Lookup returns the named identity.
func (t *Table) Lookup(name string) (*Identity, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byID[name]
	if !ok {
		return nil, pkierrors.NotFoundError("issuer: no identity registered for %q", name)
	}
	return id, nil
}

// FindByHash scans the table for an identity whose issuer-name and
// issuer-key hashes under alg match the given values, the lookup path
// an OCSP request that doesn't name its issuer directly must use
// (spec.md §4.9).
func (t *Table) FindByHash(alg hashsig.Algorithm, nameHash, keyHash []byte) (*Identity, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.byID {
		if id.Matches(alg, nameHash, keyHash) {
			return id, nil
		}
	}
	return nil, pkierrors.NotFoundError("issuer: no identity matches the requested issuer hash")
}

// Names returns every registered identity name, for diagnostics and
// config validation.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.byID))
	for name := range t.byID {
		names = append(names, name)
	}
	return names
}
