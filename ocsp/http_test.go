package ocsp

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestDERFromPOSTBody(t *testing.T) {
	body := []byte{0x30, 0x03, 0x01, 0x02, 0x03}
	req := httptest.NewRequest(http.MethodPost, "/ocsp/", bytes.NewReader(body))
	der, ok := requestDER(req, "/ocsp/", DefaultMaxRequestSize)
	if !ok {
		t.Fatalf("expected POST body to be accepted")
	}
	if string(der) != string(body) {
		t.Fatalf("expected decoded body to round-trip")
	}
}

func TestRequestDERFromGETPathSegment(t *testing.T) {
	body := []byte{0x30, 0x03, 0x01, 0x02, 0x03}
	encoded := base64.StdEncoding.EncodeToString(body)
	req := httptest.NewRequest(http.MethodGet, "/ocsp/"+encoded, nil)
	der, ok := requestDER(req, "/ocsp/", DefaultMaxRequestSize)
	if !ok {
		t.Fatalf("expected GET path segment to be accepted")
	}
	if string(der) != string(body) {
		t.Fatalf("expected decoded path segment to round-trip")
	}
}

func TestRequestDERRejectsEmptyGETSegment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ocsp/", nil)
	if _, ok := requestDER(req, "/ocsp/", DefaultMaxRequestSize); ok {
		t.Fatalf("expected an empty GET path segment to be rejected")
	}
}

func TestRequestDERRejectsOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ocsp/", nil)
	if _, ok := requestDER(req, "/ocsp/", DefaultMaxRequestSize); ok {
		t.Fatalf("expected PUT to be rejected")
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 123: "123", -5: "-5"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
