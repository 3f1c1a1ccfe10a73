package asn1

import (
	stdasn1 "encoding/asn1"
	"math/big"
	"time"

	"github.com/silverline-ca/corepki/pkierrors"
)

// CRLOIDs used while scanning a TBSCertList's crlExtensions / crlEntryExtensions.
var (
	OIDCRLNumber          = stdasn1.ObjectIdentifier{2, 5, 29, 20}
	OIDDeltaCRLIndicator  = stdasn1.ObjectIdentifier{2, 5, 29, 27}
	OIDCRLReason          = stdasn1.ObjectIdentifier{2, 5, 29, 21}
	OIDInvalidityDate     = stdasn1.ObjectIdentifier{2, 5, 29, 24}
)

// RevokedEntry is one entry of a CRL's revokedCertificates list.
type RevokedEntry struct {
	Serial         *big.Int
	RevocationTime time.Time
	Reason         int
	HasReason      bool
}

// DecodedCRL is the subset of a parsed CertificateList the delta-CRL
// computation (spec.md §4.8) needs: thisUpdate, CRL number, and the
// revoked set.
type DecodedCRL struct {
	ThisUpdate time.Time
	CRLNumber  *big.Int
	Revoked    []RevokedEntry
}

// ParseCRL decodes a DER-encoded CertificateList sufficiently to recompute
// a delta against it.
func ParseCRL(der []byte) (DecodedCRL, error) {
	top, err := ReadHeader(der, 0)
	if err != nil {
		return DecodedCRL{}, err
	}
	outer, err := ReadChildren(der, top)
	if err != nil || len(outer) == 0 {
		return DecodedCRL{}, pkierrors.DecodeErrorf("asn1: CertificateList missing tbsCertList")
	}
	tbs := outer[0]
	fields, err := ReadChildren(der, tbs)
	if err != nil {
		return DecodedCRL{}, err
	}

	var out DecodedCRL
	idx := 0
	// version Version OPTIONAL (v2 CRLs always carry it, encoded as INTEGER 1)
	if idx < len(fields) && fields[idx].Tag == TagInteger {
		idx++
	}
	// signature AlgorithmIdentifier
	if idx < len(fields) && fields[idx].Tag == TagSequence {
		idx++
	}
	// issuer Name
	if idx < len(fields) {
		idx++
	}
	// thisUpdate Time
	if idx >= len(fields) {
		return DecodedCRL{}, pkierrors.DecodeErrorf("asn1: TBSCertList missing thisUpdate")
	}
	thisUpdate, err := decodeTime(der, fields[idx])
	if err != nil {
		return DecodedCRL{}, err
	}
	out.ThisUpdate = thisUpdate
	idx++

	// nextUpdate Time OPTIONAL
	if idx < len(fields) && (fields[idx].Tag == TagUTCTime || fields[idx].Tag == TagGeneralizedTime) {
		idx++
	}

	// revokedCertificates SEQUENCE OF ... OPTIONAL
	if idx < len(fields) && fields[idx].Tag == TagSequence {
		entries, err := ReadChildren(der, fields[idx])
		if err != nil {
			return DecodedCRL{}, err
		}
		for _, e := range entries {
			entry, err := decodeRevokedEntry(der, e)
			if err != nil {
				return DecodedCRL{}, err
			}
			out.Revoked = append(out.Revoked, entry)
		}
		idx++
	}

	// crlExtensions [0] EXPLICIT Extensions OPTIONAL
	if idx < len(fields) && fields[idx].Tag == ContextTag(0, true) {
		inner, err := UnwrapExplicit(der, fields[idx])
		if err == nil {
			exts, err := ParseExtensions(der, inner)
			if err == nil {
				if ext, ok := FindExtension(exts, OIDCRLNumber); ok {
					var n *big.Int
					if _, err := stdasn1.Unmarshal(ext.Value, &n); err == nil {
						out.CRLNumber = n
					}
				}
			}
		}
	}

	return out, nil
}

func decodeTime(data []byte, h Header) (time.Time, error) {
	var t time.Time
	if _, err := stdasn1.Unmarshal(h.Raw(data), &t); err != nil {
		return time.Time{}, pkierrors.DecodeErrorf("asn1: malformed Time: %v", err)
	}
	return t, nil
}

func decodeRevokedEntry(data []byte, h Header) (RevokedEntry, error) {
	if h.Tag != TagSequence {
		return RevokedEntry{}, pkierrors.DecodeErrorf("asn1: revokedCertificate entry is not a SEQUENCE")
	}
	fields, err := ReadChildren(data, h)
	if err != nil || len(fields) < 2 {
		return RevokedEntry{}, pkierrors.DecodeErrorf("asn1: malformed revokedCertificate entry")
	}
	var serial *big.Int
	if _, err := stdasn1.Unmarshal(fields[0].Raw(data), &serial); err != nil {
		return RevokedEntry{}, pkierrors.DecodeErrorf("asn1: malformed userCertificate: %v", err)
	}
	revTime, err := decodeTime(data, fields[1])
	if err != nil {
		return RevokedEntry{}, err
	}
	entry := RevokedEntry{Serial: serial, RevocationTime: revTime}
	if len(fields) > 2 && fields[2].Tag == TagSequence {
		exts, err := ParseExtensions(data, fields[2])
		if err == nil {
			if ext, ok := FindExtension(exts, OIDCRLReason); ok {
				var reason int
				if _, err := stdasn1.Unmarshal(ext.Value, &reason); err == nil {
					entry.Reason = reason
					entry.HasReason = true
				}
			}
		}
	}
	return entry, nil
}
