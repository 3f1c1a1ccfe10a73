package asn1

import "testing"

func TestReadHeaderShortForm(t *testing.T) {
	// SEQUENCE { INTEGER 1 } == 30 03 02 01 01
	data := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	h, err := ReadHeader(data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Tag != TagSequence || h.Length != 3 || h.ContentOffset != 2 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestReadHeaderLongForm(t *testing.T) {
	for n, lenBytes := range map[int][]byte{
		1: {0x81, 0x80},
		2: {0x82, 0x01, 0x00},
		3: {0x83, 0x01, 0x00, 0x00},
		4: {0x84, 0x01, 0x00, 0x00, 0x00},
	} {
		data := append([]byte{0x30}, lenBytes...)
		var want int
		switch n {
		case 1:
			want = 0x80
		case 2:
			want = 0x100
		case 3:
			want = 0x10000
		case 4:
			want = 0x1000000
		}
		content := make([]byte, want)
		data = append(data, content...)
		h, err := ReadHeader(data, 0)
		if err != nil {
			t.Fatalf("%d-byte length: unexpected error: %v", n, err)
		}
		if h.Length != want {
			t.Fatalf("%d-byte length: got %d want %d", n, h.Length, want)
		}
		if h.ContentOffset != 1+1+n {
			t.Fatalf("%d-byte length: got content offset %d want %d", n, h.ContentOffset, 1+1+n)
		}
	}
}

func TestReadHeaderRejectsIndefiniteLength(t *testing.T) {
	data := []byte{0x30, 0x80, 0x02, 0x01, 0x01, 0x00, 0x00}
	if _, err := ReadHeader(data, 0); err == nil {
		t.Fatalf("expected indefinite length to fail")
	}
}

func TestReadHeaderRejectsFiveLengthBytes(t *testing.T) {
	data := []byte{0x30, 0x85, 0, 0, 0, 0, 1, 0}
	if _, err := ReadHeader(data, 0); err == nil {
		t.Fatalf("expected 5-byte length form to fail")
	}
}

func TestReadHeaderRejectsTruncatedInput(t *testing.T) {
	data := []byte{0x30, 0x05, 0x01}
	if _, err := ReadHeader(data, 0); err == nil {
		t.Fatalf("expected truncated declared length to fail")
	}
}

func TestReadChildrenWalksSequence(t *testing.T) {
	// SEQUENCE { INTEGER 1, INTEGER 2 }
	data := []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02}
	h, err := ReadHeader(data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	children, err := ReadChildren(data, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if data[children[0].ContentOffset] != 0x01 || data[children[1].ContentOffset] != 0x02 {
		t.Fatalf("unexpected child contents")
	}
}
