package hashsig

import "testing"

func TestDescribeLengthsMatchSum(t *testing.T) {
	for _, alg := range []Algorithm{SHA1, SHA224, SHA256, SHA384, SHA512, SHA3_224, SHA3_256, SHA3_384, SHA3_512, SHAKE128, SHAKE256, SM3} {
		d, ok := Describe(alg)
		if !ok {
			t.Fatalf("Describe(%v) not found", alg)
		}
		sum, ok := Sum(alg, []byte("certificate authority"))
		if !ok {
			t.Fatalf("Sum(%v) not found", alg)
		}
		if len(sum) != d.Length {
			t.Fatalf("alg %s: descriptor length %d, actual digest length %d", d.Name, d.Length, len(sum))
		}
	}
}

func TestByOIDRoundTrips(t *testing.T) {
	for alg, d := range descriptors {
		got, ok := ByOID(d.OID)
		if !ok {
			t.Fatalf("ByOID(%v) for %s not found", d.OID, d.Name)
		}
		if got != alg {
			t.Fatalf("ByOID(%v) = %v, want %v", d.OID, got, alg)
		}
	}
}

func TestSumUnknownAlgorithm(t *testing.T) {
	if _, ok := Sum(Algorithm(999), []byte("x")); ok {
		t.Fatalf("expected unknown algorithm to fail")
	}
}
