// Package ocsp implements the OCSP responder spec.md §4.9 describes:
// parse and bound-check an OCSPRequest, match its CertID against a
// registered issuer, look up current revocation status, assemble and
// sign a BasicOCSPResponse, and cache the result. Grounds the
// request/response plumbing on cmd/ocsp-responder/main_test.go's
// mux/dbSource shape and on the pack's Redis-backed caching examples.
package ocsp

import (
	"context"
	"crypto/ecdsa"
	cryptorand "crypto/rand"
	"crypto/rsa"
	stdasn1 "encoding/asn1"
	"math/big"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	corepkiasn1 "github.com/silverline-ca/corepki/asn1"
	"github.com/silverline-ca/corepki/hashsig"
	"github.com/silverline-ca/corepki/issuer"
	"github.com/silverline-ca/corepki/log"
	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/signer"
	"github.com/silverline-ca/corepki/store"
)

// MaxNonceLength bounds the Nonce extension per RFC 8954 §2.1, rejecting
// requests that try to use the nonce as a covert channel (spec.md §4.9
// edge cases).
const MaxNonceLength = 32

// DefaultMaxRequestListCount is the fallback request-list bound when a
// Responder is built without an explicit one, per spec.md §6's
// "maxRequestListCount >= 1" configuration surface.
const DefaultMaxRequestListCount = 1

// DefaultMaxRequestSize is the fallback request-body byte bound,
// spec.md §6's "maxRequestSize >= 100".
const DefaultMaxRequestSize = 10 * 1024

// Cache is the minimal surface the responder needs from a response
// cache. A *redis.Client (wrapped below) and a no-op cache both satisfy
// it, so tests don't need a live Redis instance.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// RedisCache adapts *redis.Client to Cache, the direct pack-sourced
// caching layer several retrieved repos wire go-redis up as.
type RedisCache struct {
	Client *redis.Client
}

func (c RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.Client.Set(ctx, key, value, ttl)
}

// noopCache never hits and never stores, the default when no cache is
// configured.
type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error)  { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) {}

// Responder answers OCSP requests for every issuer in a table.
type Responder struct {
	issuers             *issuer.Table
	store               *store.Store
	cache               Cache
	logger              logr.Logger
	maxRequestListCount int
	maxRequestSize      int
	maxNonceLength      int
	supportsHTTPGet     bool
}

// New builds a Responder with the default request-list and
// request-size bounds. cache may be nil to disable response caching.
func New(issuers *issuer.Table, st *store.Store, cache Cache, logger logr.Logger) *Responder {
	return NewWithLimits(issuers, st, cache, logger, DefaultMaxRequestListCount, DefaultMaxRequestSize)
}

// NewWithLimits builds a Responder bounded by the configured
// maxRequestListCount/maxRequestSize (spec.md §6), the knobs
// cmd/ocsp-responder wires from config.OCSPConfig.
func NewWithLimits(issuers *issuer.Table, st *store.Store, cache Cache, logger logr.Logger, maxRequestListCount, maxRequestSize int) *Responder {
	if cache == nil {
		cache = noopCache{}
	}
	if maxRequestListCount < 1 {
		maxRequestListCount = DefaultMaxRequestListCount
	}
	if maxRequestSize < 1 {
		maxRequestSize = DefaultMaxRequestSize
	}
	return &Responder{
		issuers:             issuers,
		store:               st,
		cache:               cache,
		logger:              logger,
		maxRequestListCount: maxRequestListCount,
		maxRequestSize:      maxRequestSize,
		maxNonceLength:      MaxNonceLength,
		supportsHTTPGet:     true,
	}
}

// SetNonceLimit overrides the RFC 8954 nonce length bound, spec.md
// §6's OCSP.nonce.maxLen. maxLen <= 0 leaves MaxNonceLength in effect.
func (r *Responder) SetNonceLimit(maxLen int) {
	if maxLen > 0 {
		r.maxNonceLength = maxLen
	}
}

// SetSupportsHTTPGet controls whether Mux should route RFC 6960
// Appendix A GET requests to this responder, spec.md §6's
// OCSP.supportsHttpGet.
func (r *Responder) SetSupportsHTTPGet(supported bool) {
	r.supportsHTTPGet = supported
}

// MaxRequestSize returns the configured request-body byte bound, used
// by Mux to size its HTTP body reads.
func (r *Responder) MaxRequestSize() int {
	return r.maxRequestSize
}

// SupportsHTTPGet reports whether this responder accepts RFC 6960
// Appendix A GET requests, per spec.md §6's supportsHttpGet flag.
func (r *Responder) SupportsHTTPGet() bool {
	return r.supportsHTTPGet
}

// Respond parses der as an OCSPRequest, resolves the issuer each
// requested CertID names, looks up revocation state for every one, and
// returns a single signed, DER-encoded OCSPResponse carrying one
// SingleResponse per CertID in request order (spec.md §4.9 steps 5-7).
// Malformed requests produce a malformedRequest response body rather
// than an error, per RFC 6960 §2.3. Every CertID in a request must
// resolve to the same issuer: BasicOCSPResponse carries one responder
// identity and is signed once, so a batch spanning multiple issuers has
// no single signer to assemble it under.
func (r *Responder) Respond(ctx context.Context, der []byte) ([]byte, error) {
	req, err := corepkiasn1.ParseOCSPRequest(der, r.maxRequestListCount)
	if err != nil || len(req.RequestList) == 0 {
		return malformedRequestResponse(), nil
	}

	nonce, err := r.extractNonce(der, req)
	if err != nil {
		return malformedRequestResponse(), nil
	}

	// A nonce-bearing request demands a freshly signed echo of that
	// nonce (RFC 8954 §2.1), so it must never be served from or
	// written into a cache keyed only on the requested CertIDs.
	cacheKey := cacheKeyFor(req.RequestList)
	if len(nonce) == 0 {
		if cached, ok, err := r.cache.Get(ctx, cacheKey); err == nil && ok {
			return cached, nil
		}
	}

	now := time.Now().UTC()
	singles := make([]corepkiasn1.SingleResponseInput, len(req.RequestList))
	nextUpdate := now.Add(time.Hour)
	var id *issuer.Identity
	var lastSerial string
	for i, certID := range req.RequestList {
		alg, ok := hashsig.ByOID(certID.HashAlgorithm)
		if !ok {
			return unauthorizedResponse(), nil
		}
		entryID, err := r.issuers.FindByHash(alg, certID.IssuerNameHash, certID.IssuerKeyHash)
		if err != nil {
			return unauthorizedResponse(), nil
		}
		if id == nil {
			id = entryID
		} else if entryID.CAID != id.CAID {
			return unauthorizedResponse(), nil
		}

		sn := new(big.Int).SetBytes(certID.SerialNumber).Text(16)
		lastSerial = sn
		rec, err := r.store.GetCertWithRevInfo(ctx, entryID.CAID, sn)

		single := corepkiasn1.SingleResponseInput{
			CertID:        certID.Raw,
			ThisUpdate:    now,
			HasNextUpdate: true,
			NextUpdate:    nextUpdate,
		}
		switch {
		case pkierrors.Is(err, pkierrors.NotFound):
			single.Status = corepkiasn1.StatusUnknown
		case err != nil:
			return nil, err
		case rec.Cert.Revoked:
			single.Status = corepkiasn1.StatusRevoked
			single.RevocationTime = time.Unix(rec.Rev.Time, 0).UTC()
			single.RevocationReason = rec.Rev.Reason
			single.HasReason = true
		default:
			single.Status = corepkiasn1.StatusGood
		}
		singles[i] = single
	}

	resp, err := r.sign(ctx, id, singles, nonce)
	if err != nil {
		return nil, err
	}

	if len(nonce) == 0 {
		r.cache.Set(ctx, cacheKey, resp, nextUpdate.Sub(now))
	}

	log.Audit(r.logger, log.AuditEvent{
		Action: "ocsp.response",
		Serial: lastSerial,
		CAName: id.Name,
		Fields: map[string]any{"count": len(singles)},
	})
	return resp, nil
}

// cacheKeyFor derives a cache key covering every CertID in a request,
// so a batched request and a single-CertID request for the same
// certificate don't collide on the same cache entry.
func cacheKeyFor(requests []corepkiasn1.CertID) string {
	var b strings.Builder
	for _, req := range requests {
		b.Write(req.Raw)
	}
	return b.String()
}

// extractNonce pulls the RFC 8954 Nonce extension value out of the
// request's [2] EXPLICIT Extensions wrapper, if present.
func (r *Responder) extractNonce(der []byte, req corepkiasn1.OCSPRequest) ([]byte, error) {
	if req.ExtensionsTLV == nil {
		return nil, nil
	}
	inner, err := corepkiasn1.UnwrapExplicit(der, *req.ExtensionsTLV)
	if err != nil {
		return nil, err
	}
	exts, err := corepkiasn1.ParseExtensions(der, inner)
	if err != nil {
		return nil, err
	}
	ext, ok := corepkiasn1.FindExtension(exts, corepkiasn1.OIDNonce)
	if !ok {
		return nil, nil
	}
	var nonce []byte
	if _, err := stdasn1.Unmarshal(ext.Value, &nonce); err != nil {
		return nil, err
	}
	if len(nonce) > r.maxNonceLength {
		return nil, pkierrors.DecodeErrorf("ocsp: nonce exceeds %d bytes", r.maxNonceLength)
	}
	return nonce, nil
}

// sign builds tbsResponseData, hashes and signs it through the issuer's
// signer pool (the scoped-acquisition pattern from spec.md §5), and
// assembles the full signed OCSPResponse carrying one SingleResponse
// per entry in singles, in the order given (spec.md §4.9 step 7).
func (r *Responder) sign(ctx context.Context, id *issuer.Identity, singles []corepkiasn1.SingleResponseInput, nonce []byte) ([]byte, error) {
	if id.Signers == nil {
		return nil, pkierrors.SystemFailureError("ocsp: issuer %q has no configured signer pool", id.Name)
	}
	keyHash, _ := id.KeyHash(hashsig.SHA1)
	respData := corepkiasn1.ResponseDataInput{
		ResponderKeyHash: keyHash,
		ProducedAt:       time.Now().UTC(),
		Responses:        singles,
		Nonce:            nonce,
	}

	buf := make([]byte, 4096+len(singles)*512)
	n, err := corepkiasn1.EncodeResponseData(buf, respData)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.CRLFailure, err, "ocsp: encode response data for issuer %q", id.Name)
	}
	tbs := buf[:n]

	hashAlg := hashsig.SHA256
	h, _ := hashsig.New(hashAlg)
	h.Write(tbs)
	digest := h.Sum(nil)

	var sig []byte
	err = id.Signers.WithSigner(ctx, time.Time{}, func(inst signer.Instance) error {
		inst.Update(digest)
		var err error
		sig, err = inst.Sign(cryptorand.Reader)
		return err
	})
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.CRLFailure, err, "ocsp: sign response for issuer %q", id.Name)
	}

	sigAlgOID, err := signatureAlgorithmOID(id.Cert.PublicKey, hashAlg)
	if err != nil {
		return nil, err
	}
	basic := encodeBasicOCSPResponse(tbs, sigAlgOID, sig)

	out := make([]byte, len(basic)+64)
	n, err = corepkiasn1.EncodeOCSPResponse(out, 0, basic)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.CRLFailure, err, "ocsp: encode OCSPResponse for issuer %q", id.Name)
	}
	return out[:n], nil
}

// encodeBasicOCSPResponse assembles BasicOCSPResponse ::= SEQUENCE {
// tbsResponseData, signatureAlgorithm, signature BIT STRING, certs
// OPTIONAL } -- certs are omitted since responders in this core sign
// with a key directly traceable to a registered issuer identity
// (spec.md §4.9 Non-goals: no responder-delegation certificate chain).
func encodeBasicOCSPResponse(tbs []byte, sigAlgOID stdasn1.ObjectIdentifier, sig []byte) []byte {
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbs)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(sigAlgOID)
		})
		b.AddASN1BitString(sig)
	})
	return b.BytesOrPanic()
}

// signatureAlgorithmOID picks the conventional AlgorithmIdentifier for
// an issuer's public key type, hashed under alg.
func signatureAlgorithmOID(pub any, alg hashsig.Algorithm) (stdasn1.ObjectIdentifier, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		if alg == hashsig.SHA256 {
			return stdasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, nil // sha256WithRSAEncryption
		}
		return stdasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}, nil // sha512WithRSAEncryption
	case *ecdsa.PublicKey:
		if alg == hashsig.SHA256 {
			return stdasn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}, nil // ecdsa-with-SHA256
		}
		return stdasn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}, nil // ecdsa-with-SHA512
	default:
		return nil, pkierrors.SystemFailureError("ocsp: unsupported issuer public key type %T", pub)
	}
}

func malformedRequestResponse() []byte {
	return []byte{0x30, 0x03, 0x0a, 0x01, 0x01}
}

func unauthorizedResponse() []byte {
	return []byte{0x30, 0x03, 0x0a, 0x01, 0x06}
}
