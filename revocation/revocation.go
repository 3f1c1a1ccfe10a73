// Package revocation implements the certificate revocation state
// machine spec.md §4.6 describes: Good -> {Revoked, Hold}, Hold ->
// {Good, Revoked}, and any state -> Removed; other edges are rejected
// unless forced (see Request.Force). Grounds on boulder's ra/ra.go revocation.Reason usage and
// sa/storage-authority.go's guarded MarkCertificateRevoked update.
package revocation

import (
	"context"

	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/store"
)

// Reason is a CRLReason code (RFC 5280 §5.3.1).
type Reason int

const (
	Unspecified          Reason = 0
	KeyCompromise        Reason = 1
	CACompromise         Reason = 2
	AffiliationChanged   Reason = 3
	Superseded           Reason = 4
	CessationOfOperation Reason = 5
	CertificateHold      Reason = 6
	// 7 is unassigned by RFC 5280.
	RemoveFromCRL      Reason = 8
	PrivilegeWithdrawn Reason = 9
	AACompromise       Reason = 10
)

var reasonNames = map[Reason]string{
	Unspecified:          "unspecified",
	KeyCompromise:        "keyCompromise",
	CACompromise:         "cACompromise",
	AffiliationChanged:   "affiliationChanged",
	Superseded:           "superseded",
	CessationOfOperation: "cessationOfOperation",
	CertificateHold:      "certificateHold",
	RemoveFromCRL:        "removeFromCRL",
	PrivilegeWithdrawn:   "privilegeWithdrawn",
	AACompromise:         "aACompromise",
}

// String renders the reason the way audit log lines and CRL reason-code
// extensions refer to it, mirroring ra/ra.go's ReasonToString.
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is a reason code this core accepts as input
// to Revoke (spec.md §4.6: reason 7 is never valid, RemoveFromCRL is
// only valid as a CRL-entry annotation, never as a revocation request).
func (r Reason) Valid() bool {
	switch r {
	case Unspecified, KeyCompromise, CACompromise, AffiliationChanged,
		Superseded, CessationOfOperation, CertificateHold, PrivilegeWithdrawn, AACompromise:
		return true
	default:
		return false
	}
}

// Request carries the inputs to a revocation state transition.
type Request struct {
	CAID           int64
	Serial         string
	Reason         Reason
	InvalidityTime int64
	HasInvalidity  bool
	// Force bypasses Revoke's guards: it allows re-revoking a
	// certificate already revoked with a final reason, and re-applying
	// CertificateHold to a certificate already on hold. Hold -> Revoked
	// needs no Force.
	Force bool
}

// Machine drives Good/Hold/Revoked/Removed transitions over a store.Store.
type Machine struct {
	store *store.Store
	clk   clock.Clock
}

// New builds a Machine backed by st.
func New(st *store.Store, clk clock.Clock) *Machine {
	return &Machine{store: st, clk: clk}
}

// Revoke applies req, moving a certificate from Good or Hold to Revoked
// or Hold per spec.md §4.6's state machine. The guards (Revoked(reason
// != hold) -> anything rejected unless Force; Hold -> Hold with the
// same reason rejected unless Force; Hold -> Revoked(reason != hold)
// always allowed, inheriting revocationTime/invalidityTime from the
// Hold entry) are enforced by store.RevokeCert inside the same
// row-locking transaction that reads the current state, avoiding a
// check-then-act race between a separate read here and the update.
func (m *Machine) Revoke(ctx context.Context, req Request) (*store.CertWithRevInfo, error) {
	if !req.Reason.Valid() {
		return nil, pkierrors.BadRequestError("revocation: reason code %d is not valid for a revocation request", req.Reason)
	}

	info := store.RevocationInfo{
		Reason:         int(req.Reason),
		Time:           m.clk.Now().Unix(),
		InvalidityTime: req.InvalidityTime,
		HasInvalidity:  req.HasInvalidity,
	}
	return m.store.RevokeCert(ctx, req.CAID, req.Serial, info, req.Force)
}

// RevokeSuspended advances a Hold entry to Revoked(reason), spec.md
// §4.6's revoke_suspended: unlike Revoke, it rejects with not_permitted
// if the certificate is not currently on hold rather than also
// accepting a Good certificate.
func (m *Machine) RevokeSuspended(ctx context.Context, caID int64, serial string, reason Reason) (*store.CertWithRevInfo, error) {
	if !reason.Valid() || reason == CertificateHold {
		return nil, pkierrors.BadRequestError("revocation: revoke_suspended requires a final reason, got %s", reason)
	}
	return m.store.RevokeSuspended(ctx, caID, serial, int(reason))
}

// Unrevoke reverses a revocation (spec.md §4.4's unrevoke_cert).
// Permitted unconditionally when the current reason is
// certificateHold (the only unrevocation path without force); reversing
// any other reason requires force.
func (m *Machine) Unrevoke(ctx context.Context, caID int64, serial string, force bool) error {
	return m.store.UnrevokeCert(ctx, caID, serial, force)
}

// Remove moves a certificate to the terminal Removed state: it is
// deleted from future CRLs and OCSP responses for it become "unknown"
// rather than "revoked" (spec.md §4.6). Remove is legal from any state.
func (m *Machine) Remove(ctx context.Context, caID int64, serial string) error {
	return m.store.RemoveCert(ctx, caID, serial)
}

// UnsuspendAll walks every certificate on hold for caID and reverses
// the hold (Hold -> Good), the bulk administrative operation for an
// expired temporary hold window. This is distinct from RevokeSuspended,
// which instead advances Hold entries to a final Revoked reason.
func (m *Machine) UnsuspendAll(ctx context.Context, caID int64) (int, error) {
	serials, err := m.store.GetSuspendedCertSerials(ctx, caID)
	if err != nil {
		return 0, err
	}
	var n int
	for _, sn := range serials {
		if err := m.Unrevoke(ctx, caID, sn, false); err != nil {
			return n, pkierrors.Wrap(pkierrors.SystemFailure, err, "revocation: unsuspend serial %s", sn)
		}
		n++
	}
	return n, nil
}
