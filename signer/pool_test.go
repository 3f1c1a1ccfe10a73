package signer

import (
	"bytes"
	"context"
	"crypto"
	"io"
	"testing"
	"time"
)

type fakeInstance struct {
	buf bytes.Buffer
}

func (f *fakeInstance) Update(data []byte)        { f.buf.Write(data) }
func (f *fakeInstance) Public() crypto.PublicKey   { return nil }
func (f *fakeInstance) Sign(io.Reader) ([]byte, error) {
	return append([]byte(nil), f.buf.Bytes()...), nil
}

func newTestPool(t *testing.T, n int) *Pool {
	t.Helper()
	p, err := NewPool(Config{
		Parallelism: n,
		New:         func() (Instance, error) { return &fakeInstance{}, nil },
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	p := newTestPool(t, 2)
	if p.Size() != 2 {
		t.Fatalf("expected size 2, got %d", p.Size())
	}
	inst, err := p.Borrow(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Return(inst)
}

func TestBorrowFailsWhenExhausted(t *testing.T) {
	p := newTestPool(t, 1)
	inst, err := p.Borrow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error on first borrow: %v", err)
	}
	if _, err := p.Borrow(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected second borrow with zero deadline budget to fail")
	}
	p.Return(inst)
	if _, err := p.Borrow(context.Background(), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("expected borrow to succeed after return: %v", err)
	}
}

func TestWithSignerReturnsOnError(t *testing.T) {
	p := newTestPool(t, 1)
	wantErr := io.ErrUnexpectedEOF
	err := p.WithSigner(context.Background(), time.Time{}, func(Instance) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	// The instance must have been returned despite the error.
	if _, err := p.Borrow(context.Background(), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("expected borrow to succeed after WithSigner error: %v", err)
	}
}

func TestMACKeySHA1(t *testing.T) {
	p, err := NewPool(Config{
		Parallelism: 1,
		New:         func() (Instance, error) { return &fakeInstance{}, nil },
		MACKey:      []byte("super-secret-mac-key"),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	sum, ok := p.MACKeySHA1()
	if !ok {
		t.Fatalf("expected MAC key digest to be present")
	}
	if len(sum) != 20 {
		t.Fatalf("expected 20-byte SHA-1 digest, got %d", len(sum))
	}
}
