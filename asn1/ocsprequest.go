package asn1

import "github.com/silverline-ca/corepki/pkierrors"

// OCSPRequest is the decoded shape of an RFC 6960 OCSPRequest: the fields
// the responder needs, located by offset into the original buffer rather
// than copied (spec.md §4.3, §9 "streaming ASN.1 parse...mirror this
// zero-copy approach").
type OCSPRequest struct {
	Version        int
	RequestList    []CertID
	ExtensionsTLV  *Header // the raw [2] EXPLICIT Extensions TLV, if present
	Raw            []byte
}

// ParseOCSPRequest decodes the tbsRequest of an OCSPRequest. Signed
// requests (the optionalSignature [1] field) are not decoded here; callers
// needing signature verification re-read the raw bytes directly.
func ParseOCSPRequest(data []byte, maxRequestListCount int) (OCSPRequest, error) {
	top, err := ReadHeader(data, 0)
	if err != nil {
		return OCSPRequest{}, err
	}
	if top.Tag != TagSequence {
		return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: OCSPRequest is not a SEQUENCE")
	}
	outer, err := ReadChildren(data, top)
	if err != nil || len(outer) == 0 {
		return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: OCSPRequest missing tbsRequest")
	}
	tbs := outer[0]
	if tbs.Tag != TagSequence {
		return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: tbsRequest is not a SEQUENCE")
	}
	fields, err := ReadChildren(data, tbs)
	if err != nil {
		return OCSPRequest{}, err
	}

	req := OCSPRequest{Version: 0, Raw: cloneSlice(top.Raw(data))}
	idx := 0

	// version [0] EXPLICIT Version DEFAULT v1 -- reject any encoded length
	// other than 1, per spec.md §4.3.
	if idx < len(fields) && fields[idx].Tag == ContextTag(0, true) {
		versionWrapper := fields[idx]
		if versionWrapper.Length > 3 { // [0]{ INTEGER len 1 } is at most 3 bytes
			return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: OCSPRequest version field too long")
		}
		versionChildren, err := ReadChildren(data, versionWrapper)
		if err != nil || len(versionChildren) != 1 || versionChildren[0].Tag != TagInteger {
			return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: malformed version field")
		}
		if versionChildren[0].Length != 1 {
			return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: OCSPRequest version integer encoded length > 1")
		}
		req.Version = int(data[versionChildren[0].ContentOffset])
		idx++
	}

	// requestorName [1] EXPLICIT GeneralName OPTIONAL -- skip if present.
	if idx < len(fields) && fields[idx].Tag == ContextTag(1, true) {
		idx++
	}

	if idx >= len(fields) || fields[idx].Tag != TagSequence {
		return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: OCSPRequest missing requestList")
	}
	requestList := fields[idx]
	idx++

	requests, err := ReadChildren(data, requestList)
	if err != nil {
		return OCSPRequest{}, err
	}
	if len(requests) > maxRequestListCount {
		return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: requestList has %d entries, exceeds limit %d", len(requests), maxRequestListCount)
	}
	for _, r := range requests {
		if r.Tag != TagSequence {
			return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: Request is not a SEQUENCE")
		}
		rChildren, err := ReadChildren(data, r)
		if err != nil || len(rChildren) == 0 {
			return OCSPRequest{}, pkierrors.DecodeErrorf("asn1: Request missing reqCert")
		}
		certID, err := decodeCertID(data, rChildren[0])
		if err != nil {
			return OCSPRequest{}, err
		}
		req.RequestList = append(req.RequestList, certID)
	}

	// requestExtensions [2] EXPLICIT Extensions OPTIONAL
	if idx < len(fields) && fields[idx].Tag == ContextTag(2, true) {
		ext := fields[idx]
		req.ExtensionsTLV = &ext
	}

	return req, nil
}
