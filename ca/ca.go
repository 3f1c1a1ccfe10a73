// Package ca implements the certificate issuance pipeline spec.md §4.7
// describes: parse and validate a CSR, verify proof-of-possession,
// enforce a named profile, allocate a serial, sign via the issuer's
// signer pool, persist, and enqueue for publication. Grounds the
// overall shape -- Config/KeyConfig, the "no weak signature
// algorithms" rejection list, wiring of policy/storage/logging -- on
// ca/certificate-authority.go, generalized from cfssl's local.Signer to
// stdlib x509.CreateCertificate driven by the signer.Pool adapter
// pattern also used in crl and ocsp.
package ca

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	stdasn1 "encoding/asn1"
	"io"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/titanous/rocacheck"

	corepkiasn1 "github.com/silverline-ca/corepki/asn1"
	"github.com/silverline-ca/corepki/issuer"
	"github.com/silverline-ca/corepki/log"
	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/signer"
	"github.com/silverline-ca/corepki/store"
	"github.com/silverline-ca/corepki/uid"
)

// badSignatureAlgorithms rejects CSRs self-signed under an algorithm
// this core no longer considers sufficiently strong, the same
// no-MD2/MD5/SHA1/DSA rejection list ca/certificate-authority.go
// applies to issued certificates, generalized here to gate input.
var badSignatureAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.UnknownSignatureAlgorithm: true,
	x509.MD2WithRSA:                true,
	x509.MD5WithRSA:                true,
	x509.DSAWithSHA1:               true,
	x509.DSAWithSHA256:             true,
	x509.ECDSAWithSHA1:             true,
}

// ValidityMode governs how a requested notAfter past the profile's
// nominal validity window is handled (spec.md §4.7 step 6).
type ValidityMode string

const (
	// ValidityModeStrict rejects any requested notAfter past the
	// profile's notBefore+validity ceiling.
	ValidityModeStrict ValidityMode = "STRICT"
	// ValidityModeLax honors a requested notAfter even past the
	// profile's nominal ceiling.
	ValidityModeLax ValidityMode = "LAX"
	// ValidityModeCutoff clamps an over-long request down to the
	// issuing CA certificate's own notAfter instead of rejecting it.
	ValidityModeCutoff ValidityMode = "CUTOFF"
)

// Profile names a set of issuance constraints a CSR is validated and
// templated against (spec.md §4.7's "profile validation" step).
type Profile struct {
	Name             string
	Validity         time.Duration
	MaxNames         int
	KeyUsage         x509.KeyUsage
	ExtKeyUsage      []x509.ExtKeyUsage
	IsCA             bool
	MaxPathLen       int
	SignatureHashAlg crypto.Hash // carried with the profile; Issue does not read it

	// NotBeforeOffsetSeconds floors the granted notBefore at
	// now+offset; 0 disables the floor (spec.md §4.7 step 6).
	NotBeforeOffsetSeconds int
	// NotBeforeMidnightTZ, if set, backdates the granted notBefore to
	// local midnight in this IANA zone (spec.md §4.7 step 6).
	NotBeforeMidnightTZ string
	// ValidityMode resolves a requested notAfter exceeding the
	// profile's nominal ceiling (spec.md §4.7 step 6). The zero value
	// behaves as ValidityModeStrict.
	ValidityMode ValidityMode

	// SubjectRDNOrder sorts the granted subject's RDNs by named
	// attribute type, unnamed types keeping their incoming relative
	// order after every named one (spec.md §4.7 step 5).
	SubjectRDNOrder []string
	// MaxSubjectRDNs truncates the granted subject to at most this
	// many RDNs, 0 meaning unbounded (spec.md §4.7 step 5).
	MaxSubjectRDNs int
}

// IssuanceRequest carries one certificate request through the pipeline.
type IssuanceRequest struct {
	CSRDER      []byte
	ProfileName string
	RequestorID int64
	UserID      int64
	EndEntity   bool
	CrlScope    int64
	// PublishTo lists publisher ids to enqueue this certificate for
	// after issuance (spec.md §4.4's publish queue).
	PublishTo []int64

	// RequestedNotAfter, if HasNotAfter, is reconciled against the
	// profile's own validity window per the profile's ValidityMode
	// (spec.md §4.7 step 6).
	RequestedNotAfter time.Time
	HasNotAfter       bool

	// SelfSignedRoot marks this issuance as the caller acting as its
	// own CA: the signer's public key is required to equal the CSR's
	// public key, else bad_request (spec.md §4.7's closing paragraph).
	SelfSignedRoot bool
}

// Authority drives CSR validation, signing, and persistence for one
// table of issuer identities.
type Authority struct {
	issuers  *issuer.Table
	profiles map[string]Profile
	store    *store.Store
	uidGen   *uid.Generator
	clk      clock.Clock
	logger   logr.Logger
}

// New builds an Authority.
func New(issuers *issuer.Table, profiles map[string]Profile, st *store.Store, uidGen *uid.Generator, clk clock.Clock, logger logr.Logger) *Authority {
	return &Authority{issuers: issuers, profiles: profiles, store: st, uidGen: uidGen, clk: clk, logger: logger}
}

// Issue runs the full pipeline for one request against the named
// issuer, returning the signed certificate's DER encoding.
func (a *Authority) Issue(ctx context.Context, issuerName string, req IssuanceRequest) ([]byte, error) {
	id, err := a.issuers.Lookup(issuerName)
	if err != nil {
		return nil, err
	}
	profile, ok := a.profiles[req.ProfileName]
	if !ok {
		return nil, pkierrors.BadRequestError("ca: unknown profile %q", req.ProfileName)
	}

	csr, err := corepkiasn1.ParseCSR(req.CSRDER)
	if err != nil {
		return nil, err
	}

	if err := verifyPOP(csr); err != nil {
		return nil, err
	}
	if badSignatureAlgorithms[csr.SignatureAlgorithm] {
		return nil, pkierrors.BadCertTemplateError("ca: CSR self-signature algorithm %v is not permitted", csr.SignatureAlgorithm)
	}
	if err := canonicalizeSPKI(csr.PublicKey); err != nil {
		return nil, err
	}
	if err := rejectWeakKey(csr.PublicKey); err != nil {
		return nil, err
	}
	if len(csr.DNSNames) > profile.MaxNames {
		return nil, pkierrors.BadCertTemplateError("ca: request has %d names, profile %q allows at most %d", len(csr.DNSNames), profile.Name, profile.MaxNames)
	}
	if req.SelfSignedRoot && !publicKeysEqual(id.Cert.PublicKey, csr.PublicKey) {
		return nil, pkierrors.BadRequestError("ca: self-signed root issuance requires the signer's public key to equal the CSR's public key")
	}

	now := a.clk.Now()
	serial := a.allocateSerial()
	notBefore, notAfter, err := determineValidity(id, now, profile, req)
	if err != nil {
		return nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               grantSubject(csr.Subject, profile),
		DNSNames:              csr.DNSNames,
		EmailAddresses:        csr.EmailAddresses,
		IPAddresses:           csr.IPAddresses,
		URIs:                  csr.URIs,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              profile.KeyUsage,
		ExtKeyUsage:           profile.ExtKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  profile.IsCA,
		SubjectKeyId:          subjectKeyID(csr.RawSubjectPublicKeyInfo),
		AuthorityKeyId:        id.Cert.SubjectKeyId,
	}
	if profile.IsCA && profile.MaxPathLen >= 0 {
		tmpl.MaxPathLen = profile.MaxPathLen
		tmpl.MaxPathLenZero = profile.MaxPathLen == 0
	}

	der, err := a.sign(ctx, id, tmpl, csr.PublicKey)
	if err != nil {
		return nil, err
	}

	txID := uuid.New().String()
	row := store.CertRow{
		SN:            store.SerialToHex(serial),
		Subject:       csr.Subject.String(),
		ReqSubject:    csr.Subject.String(),
		HasReqSubject: false,
		NotBefore:     tmpl.NotBefore.Unix(),
		NotAfter:      tmpl.NotAfter.Unix(),
		ProfileID:     0,
		CAID:          id.CAID,
		RequestorID:   req.RequestorID,
		UserID:        req.UserID,
		EndEntity:     req.EndEntity,
		TxID:          txID,
		SHA1:          hexSHA1(der),
		CRLScope:      req.CrlScope,
		Cert:          der,
	}
	mintID := a.uidGen.Next()
	if err := a.store.AddCert(ctx, mintID, row); err != nil {
		return nil, err
	}

	for _, pubID := range req.PublishTo {
		if err := a.store.AddToPublishQueue(ctx, store.PublishQueueRow{PublisherID: pubID, CAID: id.CAID, CertID: mintID}); err != nil {
			a.logger.Error(err, "ca: failed to enqueue certificate for publishing", "publisher", pubID, "serial", row.SN)
		}
	}

	log.Audit(a.logger, log.AuditEvent{
		Action: "ca.cert.issued",
		Serial: row.SN,
		CAName: id.Name,
		Fields: map[string]any{"profile": profile.Name, "tx_id": txID},
	})
	return der, nil
}

// allocateSerial mints a fresh, always-positive serial number from the
// shared unique-id generator (spec.md §4.3's "every row gets its
// primary key from the same generator" extended to serials).
func (a *Authority) allocateSerial() *big.Int {
	return big.NewInt(a.uidGen.Next())
}

// verifyPOP checks the CSR's proof-of-possession signature. Static
// Diffie-Hellman POP (the DhSigStatic attribute, spec.md §4.7 step 2)
// requires a key-agreement verifier no repo in the pack implements; it
// is accepted structurally (attribute present and non-empty) but not
// cryptographically verified, a limitation recorded in DESIGN.md.
func verifyPOP(csr corepkiasn1.ParsedCSR) error {
	if csr.HasDhSigStatic {
		if len(csr.DhSigStatic) == 0 {
			return pkierrors.BadPOPError("ca: DhSigStatic attribute present but empty")
		}
		return nil
	}
	if err := csr.CheckSignature(); err != nil {
		return pkierrors.BadPOPError("ca: CSR proof-of-possession signature invalid: %v", err)
	}
	return nil
}

// rejectWeakKey applies the ROCA weak-key check (infineon RSA key
// generation flaw, CVE-2017-15361) to RSA public keys, the direct
// pack-sourced use of rocacheck.
func rejectWeakKey(pub crypto.PublicKey) error {
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	if rocacheck.IsWeak(rsaKey) {
		return pkierrors.BadCertTemplateError("ca: public key is vulnerable to the ROCA weak-key attack")
	}
	return nil
}

// determineValidity derives the granted notBefore/notAfter window
// (spec.md §4.7 step 6). notBefore defaults to now, floored by the
// profile's offset and/or backdated to midnight in its named timezone;
// notAfter defaults to notBefore+validity, honoring a tighter requested
// notAfter, and reconciling a longer one per profile.ValidityMode.
func determineValidity(id *issuer.Identity, now time.Time, profile Profile, req IssuanceRequest) (time.Time, time.Time, error) {
	notBefore := now
	if profile.NotBeforeOffsetSeconds > 0 {
		notBefore = notBefore.Add(time.Duration(profile.NotBeforeOffsetSeconds) * time.Second)
	}
	if profile.NotBeforeMidnightTZ != "" {
		loc, err := time.LoadLocation(profile.NotBeforeMidnightTZ)
		if err != nil {
			return time.Time{}, time.Time{}, pkierrors.SystemFailureError("ca: profile %q names unknown timezone %q", profile.Name, profile.NotBeforeMidnightTZ)
		}
		local := notBefore.In(loc)
		notBefore = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	}

	policyNotAfter := notBefore.Add(profile.Validity)
	if !req.HasNotAfter || !req.RequestedNotAfter.After(policyNotAfter) {
		if req.HasNotAfter {
			return notBefore, req.RequestedNotAfter, nil
		}
		return notBefore, policyNotAfter, nil
	}

	switch profile.ValidityMode {
	case ValidityModeLax:
		return notBefore, req.RequestedNotAfter, nil
	case ValidityModeCutoff:
		if req.RequestedNotAfter.After(id.Cert.NotAfter) {
			return notBefore, id.Cert.NotAfter, nil
		}
		return notBefore, req.RequestedNotAfter, nil
	default: // ValidityModeStrict, including the zero value
		return time.Time{}, time.Time{}, pkierrors.BadRequestError(
			"ca: requested notAfter %s exceeds profile %q's validity ceiling %s under STRICT validity mode",
			req.RequestedNotAfter.Format(time.RFC3339), profile.Name, policyNotAfter.Format(time.RFC3339))
	}
}

// rdnTypeOIDs names the RDN attribute types a profile's SubjectRDNOrder
// may reference (RFC 4519 short names for the RFC 5280 id-at OIDs).
var rdnTypeOIDs = map[string]stdasn1.ObjectIdentifier{
	"C":            {2, 5, 4, 6},
	"O":            {2, 5, 4, 10},
	"OU":           {2, 5, 4, 11},
	"CN":           {2, 5, 4, 3},
	"L":            {2, 5, 4, 7},
	"ST":           {2, 5, 4, 8},
	"STREET":       {2, 5, 4, 9},
	"POSTALCODE":   {2, 5, 4, 17},
	"SERIALNUMBER": {2, 5, 4, 5},
}

func rdnTypeName(oid stdasn1.ObjectIdentifier) string {
	for name, want := range rdnTypeOIDs {
		if oid.Equal(want) {
			return name
		}
	}
	return ""
}

// grantSubject derives the granted subject from the requested one
// (spec.md §4.7 step 5): sorted by profile.SubjectRDNOrder (unnamed
// types keep their incoming relative order, appended after every named
// one) and truncated to profile.MaxSubjectRDNs. The result carries its
// RDNs via pkix.Name.ExtraNames, the only field crypto/x509/pkix.Name
// marshals in caller-chosen order rather than a fixed field order.
func grantSubject(requested pkix.Name, profile Profile) pkix.Name {
	atvs := append([]pkix.AttributeTypeAndValue(nil), requested.Names...)
	if len(profile.SubjectRDNOrder) > 0 {
		rank := make(map[string]int, len(profile.SubjectRDNOrder))
		for i, t := range profile.SubjectRDNOrder {
			rank[strings.ToUpper(t)] = i
		}
		unranked := len(profile.SubjectRDNOrder)
		sort.SliceStable(atvs, func(i, j int) bool {
			ri, ok := rank[rdnTypeName(atvs[i].Type)]
			if !ok {
				ri = unranked
			}
			rj, ok := rank[rdnTypeName(atvs[j].Type)]
			if !ok {
				rj = unranked
			}
			return ri < rj
		})
	}
	if profile.MaxSubjectRDNs > 0 && len(atvs) > profile.MaxSubjectRDNs {
		atvs = atvs[:profile.MaxSubjectRDNs]
	}
	return pkix.Name{ExtraNames: atvs}
}

// canonicalizeSPKI applies spec.md §4.7 step 3's SubjectPublicKeyInfo
// canonicalization: crypto/x509.CreateCertificate always re-marshals
// SPKI from the Go public-key value rather than copying the CSR's raw
// bytes, which already produces the RFC 3279 encoding (DER-NULL RSA
// parameters, no parameters for EC/Ed25519). The one case stdlib
// re-marshaling cannot fix is an EC key whose curve it could not name,
// which crypto/x509 already refuses to parse; this check makes that
// rejection explicit and maps it to bad_cert_template instead of a
// decode error surfacing from CSR parsing.
func canonicalizeSPKI(pub crypto.PublicKey) error {
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil
	}
	if ecKey.Curve == nil {
		return pkierrors.BadCertTemplateError("ca: EC public key lacks named-curve parameters")
	}
	return nil
}

// publicKeysEqual compares two public keys by their canonical SPKI
// encoding, used by the self-signed-root check (spec.md §4.7, closing
// paragraph).
func publicKeysEqual(a, b crypto.PublicKey) bool {
	aDER, err := x509.MarshalPKIXPublicKey(a)
	if err != nil {
		return false
	}
	bDER, err := x509.MarshalPKIXPublicKey(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aDER, bDER)
}

func subjectKeyID(spki []byte) []byte {
	sum := sha1.Sum(spki)
	return sum[:]
}

func hexSHA1(der []byte) string {
	sum := sha1.Sum(der)
	return hexEncode(sum[:])
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// sign drives the issuer's signer pool through x509.CreateCertificate.
func (a *Authority) sign(ctx context.Context, id *issuer.Identity, tmpl *x509.Certificate, pub crypto.PublicKey) ([]byte, error) {
	if id.Signers == nil {
		return nil, pkierrors.SystemFailureError("ca: issuer %q has no configured signer pool", id.Name)
	}
	var der []byte
	err := id.Signers.WithSigner(ctx, time.Time{}, func(inst signer.Instance) error {
		var err error
		der, err = x509.CreateCertificate(cryptorand.Reader, tmpl, id.Cert, pub, signerAdapter{inst: inst})
		return err
	})
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "ca: sign certificate for issuer %q", id.Name)
	}
	return der, nil
}

// signerAdapter satisfies crypto.Signer over a signer.Instance, mirroring
// the same bridge crl and ocsp use.
type signerAdapter struct {
	inst signer.Instance
}

func (s signerAdapter) Public() crypto.PublicKey { return s.inst.Public() }

func (s signerAdapter) Sign(rand io.Reader, digest []byte, _ crypto.SignerOpts) ([]byte, error) {
	s.inst.Update(digest)
	return s.inst.Sign(rand)
}
