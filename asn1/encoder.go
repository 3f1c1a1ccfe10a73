package asn1

import (
	stdasn1 "encoding/asn1"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// CertStatus is the tag discriminant of an OCSP CertStatus CHOICE.
type CertStatus int

const (
	StatusGood CertStatus = iota
	StatusRevoked
	StatusUnknown
)

// SingleResponseInput carries the fields needed to encode one
// SingleResponse entry.
type SingleResponseInput struct {
	CertID           []byte // raw CertID TLV, echoed verbatim from the request
	Status           CertStatus
	RevocationTime   time.Time
	RevocationReason int // CRLReason, only meaningful when Status == StatusRevoked
	HasReason        bool
	ThisUpdate       time.Time
	NextUpdate       time.Time
	HasNextUpdate    bool
}

// ResponseDataInput carries the fields needed to encode the TBS
// ResponseData of a BasicOCSPResponse.
type ResponseDataInput struct {
	ResponderKeyHash []byte // SHA-1 of the responder's public key (byKey ResponderID)
	ProducedAt       time.Time
	Responses        []SingleResponseInput
	Nonce            []byte // nil if no Nonce extension should be emitted
}

func addGeneralizedTime(b *cryptobyte.Builder, t time.Time) {
	b.AddASN1GeneralizedTime(t.UTC())
}

func addExplicit(b *cryptobyte.Builder, tag int, fn func(child *cryptobyte.Builder)) {
	b.AddASN1(cbasn1.Tag(tag).Constructed().ContextSpecific(), fn)
}

// EncodeSingleResponse appends one SingleResponse to b.
func EncodeSingleResponse(b *cryptobyte.Builder, in SingleResponseInput) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(in.CertID)
		switch in.Status {
		case StatusGood:
			b.AddASN1(cbasn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {})
		case StatusRevoked:
			b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				addGeneralizedTime(b, in.RevocationTime)
				if in.HasReason {
					addExplicit(b, 0, func(b *cryptobyte.Builder) {
						b.AddASN1Enum(int64(in.RevocationReason))
					})
				}
			})
		case StatusUnknown:
			b.AddASN1(cbasn1.Tag(2).ContextSpecific(), func(b *cryptobyte.Builder) {})
		}
		addGeneralizedTime(b, in.ThisUpdate)
		if in.HasNextUpdate {
			addExplicit(b, 0, func(b *cryptobyte.Builder) {
				addGeneralizedTime(b, in.NextUpdate)
			})
		}
	})
}

// EncodeResponseData encodes the ResponseData TBS structure into a
// caller-sized buffer, returning the bytes written. If buf is too small
// the fixed builder records an error, which is returned -- callers size
// it upfront from a conservative estimate (spec.md §4.3).
func EncodeResponseData(buf []byte, in ResponseDataInput) (int, error) {
	b := cryptobyte.NewFixedBuilder(buf[:0])
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		// responderID [2] byKey KeyHash
		b.AddASN1(cbasn1.Tag(2).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1OctetString(in.ResponderKeyHash)
		})
		addGeneralizedTime(b, in.ProducedAt)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, r := range in.Responses {
				EncodeSingleResponse(b, r)
			}
		})
		if len(in.Nonce) > 0 {
			addExplicit(b, 1, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(OIDNonce)
						b.AddASN1OctetString(func() []byte {
							inner := cryptobyte.NewBuilder(nil)
							inner.AddASN1OctetString(in.Nonce)
							return inner.BytesOrPanic()
						}())
					})
				})
			})
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// EncodeOCSPResponse wraps a signed BasicOCSPResponse (tbsResponseData ||
// signatureAlgorithm || signature, already assembled by the caller after
// signing tbsResponseData) into the outer OCSPResponse structure, writing
// into buf and returning the bytes written.
func EncodeOCSPResponse(buf []byte, status int, basicResponseDER []byte) (int, error) {
	b := cryptobyte.NewFixedBuilder(buf[:0])
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Enum(int64(status))
		if basicResponseDER != nil {
			addExplicit(b, 0, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(oidPKIXOCSPBasic)
					b.AddASN1OctetString(basicResponseDER)
				})
			})
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// id-pkix-ocsp-basic (RFC 6960 §4.2.1)
var oidPKIXOCSPBasic = stdasn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}
