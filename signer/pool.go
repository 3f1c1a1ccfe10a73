// Package signer implements the bounded signer pool spec.md §4.2 and §5
// describe: N independently initialized, non-thread-safe signer instances
// for one key, borrowed and returned under exclusive ownership so
// concurrent access is impossible by construction.
package signer

import (
	"context"
	"crypto"
	"crypto/sha1"
	"io"
	"time"

	"github.com/silverline-ca/corepki/pkierrors"
)

// Instance is one stateful signer. Update may be called zero or more
// times to buffer bytes (mirroring PKCS#11 C_SignUpdate-style signers)
// before Sign finalizes and resets the internal buffer.
type Instance interface {
	Update(data []byte)
	Sign(rand io.Reader) ([]byte, error)
	Public() crypto.PublicKey
}

// Pool lends exclusive access to one of N signer instances built for the
// same key and algorithm. At any instant, borrowed+idle == N.
type Pool struct {
	idle       chan Instance
	size       int
	macKeySHA1 []byte // set only for MAC (symmetric) signers
	hasMAC     bool
}

// Config controls pool construction.
type Config struct {
	// Parallelism is N, the number of prepared signer instances.
	Parallelism int
	// New builds one fresh Instance. Called Parallelism times at
	// construction.
	New func() (Instance, error)
	// MACKey, if non-nil, marks this as a MAC signer pool; its SHA-1
	// digest is exposed via MACKeySHA1 for the subject-key-identifier
	// extension (spec.md §4.2).
	MACKey []byte
}

// NewPool builds a pool from a keystore selection: cfg.New is invoked
// cfg.Parallelism times to pre-build every instance before NewPool
// returns, matching "built when the CA is loaded" (spec.md §4.2's Signer
// entity lifecycle).
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Parallelism <= 0 {
		return nil, pkierrors.BadRequestError("signer: parallelism must be positive, got %d", cfg.Parallelism)
	}
	p := &Pool{
		idle: make(chan Instance, cfg.Parallelism),
		size: cfg.Parallelism,
	}
	if cfg.MACKey != nil {
		sum := sha1.Sum(cfg.MACKey)
		p.macKeySHA1 = sum[:]
		p.hasMAC = true
	}
	for i := 0; i < cfg.Parallelism; i++ {
		inst, err := cfg.New()
		if err != nil {
			return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "signer: building instance %d of %d", i, cfg.Parallelism)
		}
		p.idle <- inst
	}
	return p, nil
}

// Size returns N.
func (p *Pool) Size() int {
	return p.size
}

// MACKeySHA1 returns the SHA-1 digest of the MAC key, if this pool was
// constructed with one.
func (p *Pool) MACKeySHA1() ([]byte, bool) {
	return p.macKeySHA1, p.hasMAC
}

// Borrow removes one idle instance, blocking up to deadline. A deadline
// of zero value (time.Time{}) blocks indefinitely on ctx; a deadline in
// the past behaves as an immediate, non-blocking attempt. If no instance
// becomes idle in time, Borrow fails with pkierrors.NoIdleSigner
// (spec.md §8.8).
func (p *Pool) Borrow(ctx context.Context, deadline time.Time) (Instance, error) {
	select {
	case inst := <-p.idle:
		return inst, nil
	default:
	}
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	select {
	case inst := <-p.idle:
		return inst, nil
	case <-ctx.Done():
		return nil, pkierrors.NoIdleSignerError("signer: no idle signer available before deadline")
	}
}

// Return replaces a borrowed instance back into the idle set. Every
// Borrow must be matched by exactly one Return on every exit path
// (spec.md §5 "all borrowed signers must be returned on every exit
// path").
func (p *Pool) Return(inst Instance) {
	p.idle <- inst
}

// WithSigner borrows an instance, invokes fn, and guarantees the instance
// is returned even if fn panics or returns an error -- the scoped
// acquisition pattern spec.md §9 calls for.
func (p *Pool) WithSigner(ctx context.Context, deadline time.Time, fn func(Instance) error) error {
	inst, err := p.Borrow(ctx, deadline)
	if err != nil {
		return err
	}
	defer p.Return(inst)
	return fn(inst)
}
