package asn1

import (
	"testing"
	"time"
)

func TestEncodeResponseDataGood(t *testing.T) {
	buf := make([]byte, 4096)
	certID := []byte{0x30, 0x03, 0x02, 0x01, 0x2a} // placeholder CertID TLV
	n, err := EncodeResponseData(buf, ResponseDataInput{
		ResponderKeyHash: make([]byte, 20),
		ProducedAt:       time.Unix(1700000000, 0),
		Responses: []SingleResponseInput{
			{CertID: certID, Status: StatusGood, ThisUpdate: time.Unix(1700000000, 0)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected non-zero bytes written")
	}
	out := buf[:n]
	h, err := ReadHeader(out, 0)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if h.Tag != TagSequence {
		t.Fatalf("expected top-level SEQUENCE, got tag %#x", h.Tag)
	}
}

func TestEncodeResponseDataRevokedWithReason(t *testing.T) {
	buf := make([]byte, 4096)
	certID := []byte{0x30, 0x03, 0x02, 0x01, 0x2a}
	n, err := EncodeResponseData(buf, ResponseDataInput{
		ResponderKeyHash: make([]byte, 20),
		ProducedAt:       time.Unix(1700000000, 0),
		Responses: []SingleResponseInput{
			{
				CertID:           certID,
				Status:           StatusRevoked,
				RevocationTime:   time.Unix(1700000000, 0),
				RevocationReason: 1,
				HasReason:        true,
				ThisUpdate:       time.Unix(1700000000, 0),
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected non-zero bytes written")
	}
}

func TestEncodeOCSPResponseSuccessful(t *testing.T) {
	buf := make([]byte, 4096)
	n, err := EncodeOCSPResponse(buf, 0, []byte{0x30, 0x03, 0x02, 0x01, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected non-zero bytes written")
	}
}

func TestEncodeOCSPResponseMalformedHasNoBody(t *testing.T) {
	buf := make([]byte, 64)
	n, err := EncodeOCSPResponse(buf, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf[:n]
	h, err := ReadHeader(out, 0)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	children, err := ReadChildren(out, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected only the responseStatus field, got %d children", len(children))
	}
}
