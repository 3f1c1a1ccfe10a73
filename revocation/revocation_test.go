package revocation

import "testing"

func TestReasonValid(t *testing.T) {
	cases := []struct {
		r    Reason
		want bool
	}{
		{Unspecified, true},
		{KeyCompromise, true},
		{CertificateHold, true},
		{Reason(7), false},
		{Reason(99), false},
	}
	for _, c := range cases {
		if got := c.r.Valid(); got != c.want {
			t.Fatalf("Reason(%d).Valid() = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestReasonString(t *testing.T) {
	if got := KeyCompromise.String(); got != "keyCompromise" {
		t.Fatalf("got %q", got)
	}
	if got := Reason(42).String(); got != "unknown" {
		t.Fatalf("expected unknown reason name, got %q", got)
	}
}
