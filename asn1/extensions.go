package asn1

import (
	stdasn1 "encoding/asn1"

	"github.com/silverline-ca/corepki/pkierrors"
)

// OIDNonce is the OCSP Nonce extension OID (RFC 8954 §2, id-pkix-ocsp-nonce).
var OIDNonce = stdasn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}

// Extension is a decoded X.509/OCSP Extension { extnID, critical, extnValue }.
type Extension struct {
	ID       stdasn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

// recognizedExtensions lists the extension OIDs this core understands; an
// unrecognized extension marked critical fails decoding with
// malformedRequest, per spec.md §6.
var recognizedExtensions = map[string]bool{
	OIDNonce.String(): true,
}

// ParseExtensions decodes the Extensions SEQUENCE whose header is seq
// (an outer [n] EXPLICIT wrapper must already have been
// unwrapped by the caller to find the inner SEQUENCE -- see
// UnwrapExplicit).
func ParseExtensions(data []byte, seq Header) ([]Extension, error) {
	if seq.Tag != TagSequence {
		return nil, pkierrors.DecodeErrorf("asn1: Extensions is not a SEQUENCE")
	}
	children, err := ReadChildren(data, seq)
	if err != nil {
		return nil, err
	}
	var out []Extension
	for _, c := range children {
		if c.Tag != TagSequence {
			return nil, pkierrors.DecodeErrorf("asn1: Extension is not a SEQUENCE")
		}
		var raw struct {
			ID       stdasn1.ObjectIdentifier
			Critical bool `asn1:"optional,default:false"`
			Value    []byte
		}
		if _, err := stdasn1.Unmarshal(c.Raw(data), &raw); err != nil {
			return nil, pkierrors.DecodeErrorf("asn1: malformed Extension: %v", err)
		}
		if raw.Critical && !recognizedExtensions[raw.ID.String()] {
			return nil, pkierrors.DecodeErrorf("asn1: unrecognized critical extension %v", raw.ID)
		}
		out = append(out, Extension{ID: raw.ID, Critical: raw.Critical, Value: raw.Value})
	}
	return out, nil
}

// UnwrapExplicit reads the single inner TLV of an EXPLICIT-tagged wrapper
// (e.g. the [2] wrapping Extensions, or the [0] wrapping a CRL's
// crlExtensions).
func UnwrapExplicit(data []byte, wrapper Header) (Header, error) {
	children, err := ReadChildren(data, wrapper)
	if err != nil || len(children) != 1 {
		return Header{}, pkierrors.DecodeErrorf("asn1: explicit wrapper does not contain exactly one TLV")
	}
	return children[0], nil
}

// FindExtension returns the extension with the given OID, if present.
func FindExtension(exts []Extension, oid stdasn1.ObjectIdentifier) (Extension, bool) {
	for _, e := range exts {
		if e.ID.Equal(oid) {
			return e, true
		}
	}
	return Extension{}, false
}
