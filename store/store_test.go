package store

import "testing"

func TestSubjectFingerprintIsCaseAndWhitespaceInsensitive(t *testing.T) {
	a := subjectFingerprint("CN=Example, O=Example Corp")
	b := subjectFingerprint("  cn=example, o=example corp  ")
	if a != b {
		t.Fatalf("expected canonicalized subjects to share a fingerprint, got %d and %d", a, b)
	}
	c := subjectFingerprint("CN=Other")
	if a == c {
		t.Fatalf("expected distinct subjects to differ")
	}
}

func TestSerialHexRoundTrip(t *testing.T) {
	n, ok := HexToSerial("1a2b3c")
	if !ok {
		t.Fatalf("expected valid hex to parse")
	}
	if got := SerialToHex(n); got != "1a2b3c" {
		t.Fatalf("expected round-trip serial 1a2b3c, got %s", got)
	}
	if _, ok := HexToSerial("not-hex!"); ok {
		t.Fatalf("expected invalid hex to fail")
	}
}

func TestMySQLDialectBuildSelectFirstSQL(t *testing.T) {
	d := MySQLDialect{}
	got := d.BuildSelectFirstSQL("SELECT id FROM cert WHERE ca_id = ?", "id", 50)
	want := "SELECT id FROM cert WHERE ca_id = ? ORDER BY id LIMIT 50"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !d.SupportsInArray() {
		t.Fatalf("expected mysql dialect to support IN-array expansion")
	}
}

func TestSQLCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newSQLCache(2)
	c.put("a", "SELECT a")
	c.put("b", "SELECT b")
	if _, ok := c.get("a"); !ok {
		t.Fatalf("expected a to still be cached")
	}
	c.put("c", "SELECT c") // b is least-recently-used now, should be evicted
	if _, ok := c.get("b"); ok {
		t.Fatalf("expected b to have been evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
	if _, ok := c.get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestSQLCacheUpdateExisting(t *testing.T) {
	c := newSQLCache(4)
	c.put("k", "SELECT 1")
	c.put("k", "SELECT 2")
	got, ok := c.get("k")
	if !ok || got != "SELECT 2" {
		t.Fatalf("expected updated value SELECT 2, got %q (ok=%v)", got, ok)
	}
}

func TestRevokeTransitionGoodToAnythingAllowed(t *testing.T) {
	row := CertRow{Revoked: false}
	info := RevocationInfo{Reason: 1, Time: 100}
	got, err := revokeTransition("sn", row, info, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != info {
		t.Fatalf("expected Good -> anything to pass info through unchanged, got %+v", got)
	}
}

func TestRevokeTransitionHoldToRevokedAllowedWithoutForceAndInheritsTime(t *testing.T) {
	row := CertRow{Revoked: true, RevReason: holdReasonCode, RevTime: 50, RevInvTime: 40, HasRevInvTime: true}
	info := RevocationInfo{Reason: 1, Time: 999} // KeyCompromise, new time should be discarded
	got, err := revokeTransition("sn", row, info, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reason != 1 {
		t.Fatalf("expected requested reason to win, got %d", got.Reason)
	}
	if got.Time != 50 || got.InvalidityTime != 40 || !got.HasInvalidity {
		t.Fatalf("expected revocationTime/invalidityTime inherited from the hold entry, got %+v", got)
	}
}

func TestRevokeTransitionHoldToHoldSameReasonRejectedWithoutForce(t *testing.T) {
	row := CertRow{Revoked: true, RevReason: holdReasonCode}
	info := RevocationInfo{Reason: holdReasonCode}
	if _, err := revokeTransition("sn", row, info, false); err == nil {
		t.Fatalf("expected Hold -> Hold (same reason) to be rejected without force")
	}
	if _, err := revokeTransition("sn", row, info, true); err != nil {
		t.Fatalf("expected Hold -> Hold (same reason) to succeed with force, got %v", err)
	}
}

func TestRevokeTransitionFinalRevokedRejectedWithoutForce(t *testing.T) {
	row := CertRow{Revoked: true, RevReason: 1} // keyCompromise, a final reason
	info := RevocationInfo{Reason: 4}
	if _, err := revokeTransition("sn", row, info, false); err == nil {
		t.Fatalf("expected Revoked(final) -> anything to be rejected without force")
	}
	got, err := revokeTransition("sn", row, info, true)
	if err != nil {
		t.Fatalf("expected Revoked(final) -> anything to succeed with force, got %v", err)
	}
	if got.Reason != 4 {
		t.Fatalf("expected the forced request's own reason/time, got %+v", got)
	}
}
