package asn1

import (
	stdasn1 "encoding/asn1"

	"github.com/silverline-ca/corepki/pkierrors"
)

// CertID mirrors the OCSP CertID structure (RFC 6960 §4.1.1). CombinedHash
// returns the contiguous issuerNameHash||issuerKeyHash slice used as a
// lookup key against the issuer-identity table (spec.md §4.3), and Raw is
// the full DER encoding of this CertID as it appeared in the request.
type CertID struct {
	HashAlgorithm  stdasn1.ObjectIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   []byte
	Raw            []byte
}

// CombinedHash returns issuerNameHash||issuerKeyHash as a single slice,
// matching the byte layout stored in the issuer-identity table.
func (c CertID) CombinedHash() []byte {
	out := make([]byte, 0, len(c.IssuerNameHash)+len(c.IssuerKeyHash))
	out = append(out, c.IssuerNameHash...)
	out = append(out, c.IssuerKeyHash...)
	return out
}

// decodeCertID decodes a CertID TLV located at data[h.ContentOffset:h.End()].
func decodeCertID(data []byte, h Header) (CertID, error) {
	if h.Tag != TagSequence {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID is not a SEQUENCE")
	}
	children, err := ReadChildren(data, h)
	if err != nil {
		return CertID{}, err
	}
	if len(children) != 4 {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID expected 4 fields, got %d", len(children))
	}

	algID := children[0]
	if algID.Tag != TagSequence {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID.hashAlgorithm is not a SEQUENCE")
	}
	algChildren, err := ReadChildren(data, algID)
	if err != nil || len(algChildren) == 0 || algChildren[0].Tag != TagOID {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID.hashAlgorithm missing OID")
	}
	var oid stdasn1.ObjectIdentifier
	if _, err := stdasn1.Unmarshal(algChildren[0].Raw(data), &oid); err != nil {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID.hashAlgorithm: %v", err)
	}

	nameHash := children[1]
	keyHash := children[2]
	serial := children[3]
	if nameHash.Tag != TagOctetString || keyHash.Tag != TagOctetString {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID hash fields must be OCTET STRING")
	}
	if serial.Tag != TagInteger {
		return CertID{}, pkierrors.DecodeErrorf("asn1: CertID.serialNumber must be INTEGER")
	}

	return CertID{
		HashAlgorithm:  oid,
		IssuerNameHash: cloneSlice(data[nameHash.ContentOffset:nameHash.End()]),
		IssuerKeyHash:  cloneSlice(data[keyHash.ContentOffset:keyHash.End()]),
		SerialNumber:   cloneSlice(data[serial.ContentOffset:serial.End()]),
		Raw:            cloneSlice(h.Raw(data)),
	}, nil
}

func cloneSlice(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
