// Package hashsig names the hash and signature algorithms recognized by the
// core: digest lengths, OIDs, and the subset of CertID hash algorithms the
// OCSP responder accepts (spec.md §6).
package hashsig

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a named hash algorithm.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA224
	SHA256
	SHA384
	SHA512
	SHA3_224
	SHA3_256
	SHA3_384
	SHA3_512
	SHAKE128
	SHAKE256
	SM3
)

// Descriptor carries the static facts the core needs about a hash
// algorithm: its digest length in bytes and its OID.
type Descriptor struct {
	Name   string
	Length int
	OID    asn1.ObjectIdentifier
	newH   func() hash.Hash
}

var descriptors = map[Algorithm]Descriptor{
	SHA1:     {Name: "SHA1", Length: sha1.Size, OID: asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, newH: sha1.New},
	SHA224:   {Name: "SHA224", Length: sha256.Size224, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}, newH: sha256.New224},
	SHA256:   {Name: "SHA256", Length: sha256.Size, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, newH: sha256.New},
	SHA384:   {Name: "SHA384", Length: sha512.Size384, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, newH: sha512.New384},
	SHA512:   {Name: "SHA512", Length: sha512.Size, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, newH: sha512.New},
	SHA3_224: {Name: "SHA3-224", Length: 28, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 7}, newH: sha3.New224},
	SHA3_256: {Name: "SHA3-256", Length: 32, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8}, newH: sha3.New256},
	SHA3_384: {Name: "SHA3-384", Length: 48, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9}, newH: sha3.New384},
	SHA3_512: {Name: "SHA3-512", Length: 64, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10}, newH: sha3.New512},
	SHAKE128: {Name: "SHAKE128", Length: 32, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 11}, newH: func() hash.Hash { return &shakeHash{ShakeHash: sha3.NewShake128(), size: 32} }},
	SHAKE256: {Name: "SHAKE256", Length: 64, OID: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 12}, newH: func() hash.Hash { return &shakeHash{ShakeHash: sha3.NewShake256(), size: 64} }},
	SM3:      {Name: "SM3", Length: 32, OID: asn1.ObjectIdentifier{1, 2, 156, 10197, 1, 401}, newH: newSM3},
}

// Describe returns the Descriptor for alg, or false if alg is unknown.
func Describe(alg Algorithm) (Descriptor, bool) {
	d, ok := descriptors[alg]
	return d, ok
}

// ByOID resolves an OID (as seen on the wire, e.g. in a CertID
// hashAlgorithm field) to an Algorithm.
func ByOID(oid asn1.ObjectIdentifier) (Algorithm, bool) {
	for alg, d := range descriptors {
		if d.OID.Equal(oid) {
			return alg, true
		}
	}
	return 0, false
}

// New returns a fresh hash.Hash for alg.
func New(alg Algorithm) (hash.Hash, bool) {
	d, ok := descriptors[alg]
	if !ok {
		return nil, false
	}
	return d.newH(), true
}

// Sum computes H(data) for the named algorithm.
func Sum(alg Algorithm, data []byte) ([]byte, bool) {
	h, ok := New(alg)
	if !ok {
		return nil, false
	}
	h.Write(data)
	return h.Sum(nil), true
}

// shake128 / shake256 satisfy hash.Hash via the sha3 ShakeHash wrapper.
type shakeHash struct {
	sha3.ShakeHash
	size int
}

func (s *shakeHash) Sum(b []byte) []byte {
	out := make([]byte, s.size)
	// Read from a clone so repeated Sum calls (and subsequent Write calls)
	// behave like other hash.Hash implementations.
	clone := s.ShakeHash.Clone()
	clone.Read(out)
	return append(b, out...)
}

func (s *shakeHash) Size() int { return s.size }

func (s *shakeHash) BlockSize() int { return 168 }
