package crl

import (
	"math/big"
	"testing"

	"github.com/silverline-ca/corepki/store"
)

func TestEntriesForSkipsUnparsableSerials(t *testing.T) {
	revoked := []store.RevokedEntry{
		{SN: "1a2b", RevTime: 100, Reason: 1},
		{SN: "not-hex!", RevTime: 200, Reason: 2},
		{SN: "ff", RevTime: 300, Reason: 4},
	}
	entries := entriesFor(revoked)
	if len(entries) != 2 {
		t.Fatalf("expected 2 parsable entries, got %d", len(entries))
	}
	if entries[0].SerialNumber.Cmp(big.NewInt(0x1a2b)) != 0 {
		t.Fatalf("expected first serial 0x1a2b, got %s", entries[0].SerialNumber.Text(16))
	}
	if entries[1].ReasonCode != 4 {
		t.Fatalf("expected second entry reason 4, got %d", entries[1].ReasonCode)
	}
}

func TestDeltaIndicatorExtension(t *testing.T) {
	ext := deltaIndicatorExtension(7)
	if !ext.Id.Equal(deltaCRLIndicatorOID) {
		t.Fatalf("expected delta crl indicator OID, got %v", ext.Id)
	}
	if ext.Critical {
		t.Fatalf("expected deltaCRLIndicator to be non-critical")
	}
	if len(ext.Value) == 0 {
		t.Fatalf("expected non-empty encoded base CRL number")
	}
}
