// Package asn1 implements the minimal DER codec spec.md §4.3 calls for: a
// hand-rolled, non-allocating tag/length reader used to walk OCSP/CRL/CSR
// structures without building an intermediate tree, plus a small set of
// structural decoders (CSR, OCSPRequest, CertID) and a streaming encoder
// for the structures the OCSP responder produces.
package asn1

import "github.com/silverline-ca/corepki/pkierrors"

// Tag constants for the subset of universal and context-specific tags the
// core needs to recognize while walking DER structures.
const (
	TagBoolean        = 0x01
	TagInteger        = 0x02
	TagBitString      = 0x03
	TagOctetString    = 0x04
	TagNull           = 0x05
	TagOID            = 0x06
	TagEnumerated     = 0x0a
	TagUTCTime        = 0x17
	TagGeneralizedTime = 0x18
	TagSequence       = 0x30
	TagSet            = 0x31

	classContextSpecific = 0x80
	classConstructed     = 0x20
)

// ContextTag returns the tag byte for an explicit or implicit
// context-specific tag number n, constructed iff constructed is true.
func ContextTag(n int, constructed bool) byte {
	tag := byte(classContextSpecific | n)
	if constructed {
		tag |= classConstructed
	}
	return tag
}

// Header describes the tag/length prefix of one DER TLV.
type Header struct {
	Tag           byte
	Length        int
	Start         int // offset of the tag byte itself
	ContentOffset int
}

// End returns the offset of the byte just past this TLV's content.
func (h Header) End() int {
	return h.ContentOffset + h.Length
}

// Raw returns the full tag+length+content encoding of this TLV.
func (h Header) Raw(data []byte) []byte {
	return data[h.Start:h.End()]
}

// ReadHeader reads the tag and length of the DER value starting at
// data[offset:]. It does not allocate. Length encoding supports short form
// (length < 0x80 in a single byte) and long form up to 4 length bytes;
// any other encoding (the reserved 0x80 indefinite-length form, or a long
// form using 5+ length bytes) fails with a decode error, per spec.md §4.3
// and the testable property in spec.md §8.7.
func ReadHeader(data []byte, offset int) (Header, error) {
	if offset < 0 || offset >= len(data) {
		return Header{}, pkierrors.DecodeErrorf("asn1: offset %d out of range (len %d)", offset, len(data))
	}
	tag := data[offset]
	pos := offset + 1
	if pos >= len(data) {
		return Header{}, pkierrors.DecodeErrorf("asn1: truncated length octet")
	}
	first := data[pos]
	pos++

	var length int
	switch {
	case first&0x80 == 0:
		// Short form: the length is the value of the single byte.
		length = int(first)
	case first == 0x80:
		return Header{}, pkierrors.DecodeErrorf("asn1: indefinite length encoding is not supported")
	default:
		numBytes := int(first &^ 0x80)
		if numBytes == 0 || numBytes > 4 {
			return Header{}, pkierrors.DecodeErrorf("asn1: unsupported long-form length of %d bytes", numBytes)
		}
		if pos+numBytes > len(data) {
			return Header{}, pkierrors.DecodeErrorf("asn1: truncated long-form length")
		}
		length = 0
		for i := 0; i < numBytes; i++ {
			length = length<<8 | int(data[pos+i])
		}
		pos += numBytes
		if length < 0x80 {
			// DER requires the minimal-length encoding; a long form that
			// could have been expressed in short form is invalid.
			return Header{}, pkierrors.DecodeErrorf("asn1: non-minimal length encoding")
		}
	}

	if pos+length > len(data) {
		return Header{}, pkierrors.DecodeErrorf("asn1: declared length %d exceeds remaining input", length)
	}

	return Header{Tag: tag, Length: length, Start: offset, ContentOffset: pos}, nil
}

// ReadChildren walks the content of a constructed TLV (itself already
// located by ReadHeader) and returns the header of each immediate child in
// order. It does not allocate beyond the returned slice.
func ReadChildren(data []byte, h Header) ([]Header, error) {
	var children []Header
	pos := h.ContentOffset
	end := h.End()
	for pos < end {
		child, err := ReadHeader(data, pos)
		if err != nil {
			return nil, err
		}
		if child.End() > end {
			return nil, pkierrors.DecodeErrorf("asn1: child extends past parent boundary")
		}
		children = append(children, child)
		pos = child.End()
	}
	return children, nil
}
