package signer

import (
	"bytes"
	"crypto"
	"io"

	"github.com/silverline-ca/corepki/pkierrors"
)

// fileInstance wraps an in-memory crypto.Signer (parsed from a PEM file
// on disk) as a signer.Instance, for development and single-process
// deployments that don't have an HSM (spec.md §4.2's "construction from
// a keystore" generalized to a plain file keystore alongside PKCS#11).
type fileInstance struct {
	key crypto.Signer
	buf bytes.Buffer
}

// NewFileInstance wraps an already-parsed private key as a signer.Instance.
func NewFileInstance(key crypto.Signer) Instance {
	return &fileInstance{key: key}
}

func (f *fileInstance) Update(data []byte) {
	f.buf.Write(data)
}

func (f *fileInstance) Public() crypto.PublicKey {
	return f.key.Public()
}

// Sign assumes the digest was produced with SHA-256, the hash every
// profile in this module signs with (spec.md §4.7's default signature
// hash algorithm) -- same simplification pkcs11Instance makes by
// picking a mechanism from the key type alone.
func (f *fileInstance) Sign(rand io.Reader) ([]byte, error) {
	defer f.buf.Reset()
	digest := f.buf.Bytes()
	sig, err := f.key.Sign(rand, digest, crypto.SHA256)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "signer: file-backed Sign")
	}
	return sig, nil
}
