package signer

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"io"

	"github.com/miekg/pkcs11"

	"github.com/silverline-ca/corepki/pkierrors"
)

// pkcs11Instance is a single stateful signer backed by an HSM session,
// generalizing the pkcs11key.Key construction implied by
// ca.CertificateAuthorityImpl's KeyConfig.PKCS11 (ca/certificate-authority.go).
// Each instance owns one login session; instances are never shared across
// goroutines while borrowed.
type pkcs11Instance struct {
	ctx       *pkcs11.Ctx
	session   pkcs11.SessionHandle
	keyHandle pkcs11.ObjectHandle
	pub       crypto.PublicKey
	buf       bytes.Buffer
}

// NewPKCS11Instance wraps an already-logged-in PKCS#11 session and private
// key handle as a signer.Instance. Construction from a keystore (spec.md
// §4.2 "Construction from a keystore selects either a named key entry or
// the first key entry") is the caller's responsibility; this type only
// wraps the resulting session handle.
func NewPKCS11Instance(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, keyHandle pkcs11.ObjectHandle, pub crypto.PublicKey) Instance {
	return &pkcs11Instance{ctx: ctx, session: session, keyHandle: keyHandle, pub: pub}
}

func (p *pkcs11Instance) Update(data []byte) {
	p.buf.Write(data)
}

func (p *pkcs11Instance) Public() crypto.PublicKey {
	return p.pub
}

func (p *pkcs11Instance) Sign(rand io.Reader) ([]byte, error) {
	defer p.buf.Reset()
	digest := p.buf.Bytes()

	var mechanism []*pkcs11.Mechanism
	switch p.pub.(type) {
	case *rsa.PublicKey:
		mechanism = []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
	case *ecdsa.PublicKey:
		mechanism = []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_ECDSA, nil)}
	default:
		return nil, pkierrors.SystemFailureError("signer: unsupported public key type %T for PKCS#11 signing", p.pub)
	}

	if err := p.ctx.SignInit(p.session, mechanism, p.keyHandle); err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "signer: PKCS#11 SignInit")
	}
	sig, err := p.ctx.Sign(p.session, digest)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "signer: PKCS#11 Sign")
	}
	return sig, nil
}
