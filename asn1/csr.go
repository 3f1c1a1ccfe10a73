package asn1

import (
	"crypto/x509"
	stdasn1 "encoding/asn1"

	"github.com/silverline-ca/corepki/pkierrors"
)

// OIDExtensionRequest and OIDChallengePassword are the PKCS#9 attribute
// OIDs spec.md §6 names as consumed from a CertificationRequest.
var (
	OIDExtensionRequest  = stdasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}
	OIDChallengePassword = stdasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 7}
	// OIDDhSigStatic identifies the DhSigStatic attribute carrying the
	// issuer+serial reference and static Diffie-Hellman POP signature
	// (spec.md §4.7 step 2).
	OIDDhSigStatic = stdasn1.ObjectIdentifier{1, 2, 840, 10046, 2, 1}
)

// ParsedCSR is the decoded shape of a PKCS#10 CertificationRequest: the
// stdlib parse for the structural bulk (SubjectPublicKeyInfo, subject,
// stdlib-recognized extensionRequest), plus the attributes spec.md §4.7
// needs that stdlib does not surface.
type ParsedCSR struct {
	*x509.CertificateRequest
	ChallengePassword string
	HasChallengePw    bool
	DhSigStatic       []byte
	HasDhSigStatic    bool
}

// ParseCSR decodes a DER-encoded PKCS#10 CSR and extracts the attributes
// the issuance pipeline's POP step (spec.md §4.7 step 2) requires. Subject,
// SubjectPublicKeyInfo, and the extensionRequest attribute are delegated to
// crypto/x509; challengePassword and the DH-POP attribute are located with
// this package's own header walker directly over the
// certificationRequestInfo bytes, in the zero-copy style spec.md §9 asks
// implementers to mirror.
func ParseCSR(der []byte) (ParsedCSR, error) {
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return ParsedCSR{}, pkierrors.DecodeErrorf("asn1: malformed CertificationRequest: %v", err)
	}
	out := ParsedCSR{CertificateRequest: csr}

	top, err := ReadHeader(der, 0)
	if err != nil {
		return ParsedCSR{}, err
	}
	outer, err := ReadChildren(der, top)
	if err != nil || len(outer) == 0 {
		return ParsedCSR{}, pkierrors.DecodeErrorf("asn1: CertificationRequest missing certificationRequestInfo")
	}
	info := outer[0]
	infoFields, err := ReadChildren(der, info)
	if err != nil {
		return ParsedCSR{}, err
	}
	// version, subject, subjectPKInfo, [0] attributes -- find the [0] tag.
	for _, f := range infoFields {
		if f.Tag != ContextTag(0, true) {
			continue
		}
		attrs, err := ReadChildren(der, f)
		if err != nil {
			return ParsedCSR{}, err
		}
		for _, a := range attrs {
			if a.Tag != TagSequence {
				continue
			}
			aChildren, err := ReadChildren(der, a)
			if err != nil || len(aChildren) != 2 {
				continue
			}
			var oid stdasn1.ObjectIdentifier
			if _, err := stdasn1.Unmarshal(aChildren[0].Raw(der), &oid); err != nil {
				continue
			}
			values, err := ReadChildren(der, aChildren[1])
			if err != nil || len(values) == 0 {
				continue
			}
			switch {
			case oid.Equal(OIDChallengePassword):
				var s string
				if _, err := stdasn1.Unmarshal(values[0].Raw(der), &s); err == nil {
					out.ChallengePassword = s
					out.HasChallengePw = true
				}
			case oid.Equal(OIDDhSigStatic):
				out.DhSigStatic = cloneSlice(values[0].Raw(der))
				out.HasDhSigStatic = true
			}
		}
		break
	}

	return out, nil
}
