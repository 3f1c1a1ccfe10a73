package store

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jmhodges/clock"
	"github.com/letsencrypt/borp"
	"golang.org/x/text/unicode/norm"

	"github.com/silverline-ca/corepki/pkierrors"
)

// Store is the certificate store spec.md §4.4 describes: CRUD over
// certificates, revocation state, CRLs, and the publish queue, scoped
// per-CA and addressed by monotonic id, serial, subject fingerprint, or
// transaction id. It wraps borp.DbMap the way sa.SQLStorageAuthority
// wraps gorp in boulder's sa package.
type Store struct {
	dbMap   *borp.DbMap
	dialect Dialect
	clk     clock.Clock
	log     logr.Logger
	cache   *sqlCache
}

// New opens a Store against an already-connected *sql.DB. The caller
// owns the DB's lifecycle (pooling, TLS, credentials) per spec.md's
// ambient-config boundary; New only wires the ORM and dialect.
func New(db *sql.DB, dialect Dialect, clk clock.Clock, logger logr.Logger) *Store {
	var borpDialect borp.Dialect
	switch dialect.(type) {
	case MySQLDialect:
		borpDialect = borp.MySQLDialect{Engine: "InnoDB", Encoding: "utf8mb4"}
	default:
		borpDialect = borp.MySQLDialect{Engine: "InnoDB", Encoding: "utf8mb4"}
	}
	return &Store{
		dbMap:   newDbMap(db, borpDialect),
		dialect: dialect,
		clk:     clk,
		log:     logger,
		cache:   newSQLCache(64),
	}
}

// subjectFingerprint canonicalizes subject per spec.md §4.4 ("canonical
// subject fingerprint (64-bit)") using Unicode NFC normalization plus
// case folding, then reduces it to a 64-bit, non-cryptographic FNV-1a
// hash -- a lookup key, not a security control.
func subjectFingerprint(subject string) int64 {
	canon := norm.NFC.String(strings.ToLower(strings.TrimSpace(subject)))
	h := fnv.New64a()
	_, _ = h.Write([]byte(canon))
	return int64(h.Sum64())
}

// AddCert inserts a newly issued certificate row inside a transaction,
// assigning it a monotonic ID via the caller-supplied id (spec.md §4.3
// "every row a unique ID mints gets its primary key from the same
// generator"). Returns pkierrors.Duplicate if the (CAID, SN) pair
// already exists.
func (s *Store) AddCert(ctx context.Context, id int64, row CertRow) error {
	row.ID = id
	row.FPSubject = subjectFingerprint(row.Subject)
	if row.HasReqSubject && row.ReqSubject != row.Subject {
		row.FPReqSubject = subjectFingerprint(row.ReqSubject)
	}
	row.LUpdate = s.clk.Now().Unix()

	tx, err := s.dbMap.Begin()
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: begin AddCert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.SelectOne(&existing, "SELECT COUNT(*) FROM cert WHERE ca_id = ? AND sn = ?", row.CAID, row.SN)
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: check existing serial")
	}
	if existing > 0 {
		return pkierrors.DuplicateError("store: certificate with serial %s already exists for ca %d", row.SN, row.CAID)
	}

	if err := tx.Insert(&row); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: insert cert row")
	}
	if err := tx.Commit(); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: commit AddCert transaction")
	}
	return nil
}

// RevokeCert transitions a certificate per the revocation state machine
// (spec.md §4.6), returning the updated row with revocation info
// attached. force bypasses the conflict guards revokeTransition
// enforces (Revoked(reason!=hold) -> anything, Hold -> Hold with the
// same reason).
func (s *Store) RevokeCert(ctx context.Context, caID int64, sn string, info RevocationInfo, force bool) (*CertWithRevInfo, error) {
	tx, err := s.dbMap.Begin()
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: begin RevokeCert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row CertRow
	err = tx.SelectOne(&row, "SELECT * FROM cert WHERE ca_id = ? AND sn = ? FOR UPDATE", caID, sn)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: certificate %s not found under ca %d", sn, caID)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: select cert for revocation")
	}

	info, err = revokeTransition(sn, row, info, force)
	if err != nil {
		return nil, err
	}

	row.Revoked = true
	row.RevReason = info.Reason
	row.RevTime = info.Time
	row.HasRevInvTime = info.HasInvalidity
	if info.HasInvalidity {
		row.RevInvTime = info.InvalidityTime
	} else {
		row.RevInvTime = 0
	}
	row.LUpdate = s.clk.Now().Unix()

	if _, err := tx.Update(&row); err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: update cert revocation state")
	}
	if err := tx.Commit(); err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: commit RevokeCert transaction")
	}
	return &CertWithRevInfo{Cert: row, Rev: info}, nil
}

// holdReasonCode is the CRLReason value (RFC 5280 §5.3.1) for
// certificateHold, the only reason RevokeCert and UnrevokeCert treat as
// reversible (spec.md §4.6).
const holdReasonCode = 6

// revokeTransition decides the RevocationInfo a RevokeCert call should
// persist given the certificate's current row, or rejects the
// transition, enforcing spec.md §4.6's state machine guards:
//
//   - Revoked(reason != hold) -> anything: rejected (already_revoked)
//     unless force.
//   - Hold -> Hold with the same reason: rejected (cert_revoked) unless
//     force.
//   - Hold -> Revoked(reason != hold): always allowed, and
//     revocationTime/invalidityTime are inherited from the Hold entry
//     rather than taken from info.
//
// Kept free of I/O so it can be exercised directly in tests without a
// database.
func revokeTransition(sn string, row CertRow, info RevocationInfo, force bool) (RevocationInfo, error) {
	if !row.Revoked {
		return info, nil
	}
	wasHold := row.RevReason == holdReasonCode
	if wasHold && info.Reason == holdReasonCode && !force {
		return RevocationInfo{}, pkierrors.CertRevokedError("store: certificate %s is already on hold with the same reason", sn)
	}
	if wasHold {
		if info.Reason != holdReasonCode {
			info.Time = row.RevTime
			info.InvalidityTime = row.RevInvTime
			info.HasInvalidity = row.HasRevInvTime
		}
		return info, nil
	}
	if !force {
		return RevocationInfo{}, pkierrors.AlreadyRevokedError("store: certificate %s is already revoked with a final reason", sn)
	}
	return info, nil
}

// UnrevokeCert reverses a revocation (spec.md §4.4's unrevoke_cert), the
// one legal backward edge in the revocation state machine. Permitted
// unconditionally when the current reason is certificateHold;
// reversing any other reason requires force.
func (s *Store) UnrevokeCert(ctx context.Context, caID int64, sn string, force bool) error {
	tx, err := s.dbMap.Begin()
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: begin UnrevokeCert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row CertRow
	err = tx.SelectOne(&row, "SELECT * FROM cert WHERE ca_id = ? AND sn = ? FOR UPDATE", caID, sn)
	if err == sql.ErrNoRows {
		return pkierrors.NotFoundError("store: certificate %s not found under ca %d", sn, caID)
	} else if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: select cert for unrevocation")
	}
	if !row.Revoked {
		return pkierrors.NotPermittedError("store: certificate %s is not currently revoked", sn)
	}
	if row.RevReason != holdReasonCode && !force {
		return pkierrors.NotPermittedError("store: certificate %s is revoked with a reason other than hold; pass force to override", sn)
	}

	row.Revoked = false
	row.RevReason = 0
	row.RevTime = 0
	row.HasRevInvTime = false
	row.RevInvTime = 0
	row.LUpdate = s.clk.Now().Unix()

	if _, err := tx.Update(&row); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: update cert on unrevoke")
	}
	return tx.Commit()
}

// RevokeSuspended atomically advances a Hold entry to Revoked(reason),
// rejecting with not_permitted if the certificate is not currently on
// hold (spec.md §4.6's revoke_suspended). Unlike RevokeCert, it never
// touches a Good certificate. revocationTime and invalidityTime are
// inherited from the Hold entry, the same as the general Hold ->
// Revoked(reason != hold) edge.
func (s *Store) RevokeSuspended(ctx context.Context, caID int64, sn string, reason int) (*CertWithRevInfo, error) {
	tx, err := s.dbMap.Begin()
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: begin RevokeSuspended transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row CertRow
	err = tx.SelectOne(&row, "SELECT * FROM cert WHERE ca_id = ? AND sn = ? FOR UPDATE", caID, sn)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: certificate %s not found under ca %d", sn, caID)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: select cert for revoke_suspended")
	}
	if !row.Revoked || row.RevReason != holdReasonCode {
		return nil, pkierrors.NotPermittedError("store: certificate %s is not on hold", sn)
	}

	info := RevocationInfo{
		Reason:         reason,
		Time:           row.RevTime,
		InvalidityTime: row.RevInvTime,
		HasInvalidity:  row.HasRevInvTime,
	}
	row.RevReason = info.Reason
	row.LUpdate = s.clk.Now().Unix()

	if _, err := tx.Update(&row); err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: update cert revoke_suspended")
	}
	if err := tx.Commit(); err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: commit RevokeSuspended transaction")
	}
	return &CertWithRevInfo{Cert: row, Rev: info}, nil
}

// RemoveCert moves a certificate to Removed (spec.md §4.6's terminal,
// non-issuing-distinguishable state) by deleting its row: it disappears
// from future CRLs and OCSP responses produce unknown.
func (s *Store) RemoveCert(ctx context.Context, caID int64, sn string) error {
	_, err := s.dbMap.Exec("DELETE FROM cert WHERE ca_id = ? AND sn = ?", caID, sn)
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: remove cert %s", sn)
	}
	return nil
}

// GetCertForID returns the certificate row addressed by its monotonic ID.
func (s *Store) GetCertForID(ctx context.Context, id int64) (*CertRow, error) {
	var row CertRow
	err := s.dbMap.SelectOne(&row, "SELECT * FROM cert WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: no certificate with id %d", id)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get cert for id %d", id)
	}
	return &row, nil
}

// GetCertWithRevInfo returns a certificate and its decoded revocation
// state by (CA, serial), the shape the OCSP responder consumes directly
// (spec.md §4.9).
func (s *Store) GetCertWithRevInfo(ctx context.Context, caID int64, sn string) (*CertWithRevInfo, error) {
	var row CertRow
	err := s.dbMap.SelectOne(&row, "SELECT * FROM cert WHERE ca_id = ? AND sn = ?", caID, sn)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: certificate %s not found under ca %d", sn, caID)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get cert with rev info")
	}
	info := RevocationInfo{}
	if row.Revoked {
		info.Reason = row.RevReason
		info.Time = row.RevTime
		info.HasInvalidity = row.HasRevInvTime
		info.InvalidityTime = row.RevInvTime
	}
	return &CertWithRevInfo{Cert: row, Rev: info}, nil
}

// GetCertInfo is a lighter-weight projection of GetCertForID used by
// audit and listing paths that don't need the DER bytes.
func (s *Store) GetCertInfo(ctx context.Context, caID int64, sn string) (*CertRow, error) {
	var row CertRow
	err := s.dbMap.SelectOne(&row,
		"SELECT id, lupdate, sn, subject, nbefore, nafter, rev, pid, ca_id, rid, uid, ee, rtype, tid, sha1, rr, rt, rit FROM cert WHERE ca_id = ? AND sn = ?",
		caID, sn)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: certificate %s not found under ca %d", sn, caID)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get cert info")
	}
	return &row, nil
}

// GetSerialNumbers pages through every serial under caID in ID order,
// the cursor-based listing pattern spec.md §4.4 calls for to support
// unbounded CA populations. Pass the last-seen id as afterID (0 for the
// first page).
func (s *Store) GetSerialNumbers(ctx context.Context, caID, afterID int64, pageSize int) ([]string, int64, error) {
	sqlText := s.cachedSelect(fmt.Sprintf("getSerialNumbers:%d", pageSize), func() string {
		return s.dialect.BuildSelectFirstSQL(
			"SELECT id, sn FROM cert WHERE ca_id = ? AND id > ?", "id", pageSize)
	})
	var rows []CertRow
	_, err := s.dbMap.Select(&rows, sqlText, caID, afterID)
	if err != nil {
		return nil, 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get serial numbers")
	}
	sns := make([]string, len(rows))
	var last int64
	for i, r := range rows {
		sns[i] = r.SN
		last = r.ID
	}
	return sns, last, nil
}

// GetExpiredSerialNumbers pages through serials whose NotAfter is at or
// before cutoff, feeding CRL cleanup and archival tooling (spec.md §4.4).
func (s *Store) GetExpiredSerialNumbers(ctx context.Context, caID int64, cutoff, afterID int64, pageSize int) ([]string, int64, error) {
	sqlText := s.cachedSelect(fmt.Sprintf("getExpiredSerialNumbers:%d", pageSize), func() string {
		return s.dialect.BuildSelectFirstSQL(
			"SELECT id, sn FROM cert WHERE ca_id = ? AND nafter <= ? AND id > ?", "id", pageSize)
	})
	var rows []CertRow
	_, err := s.dbMap.Select(&rows, sqlText, caID, cutoff, afterID)
	if err != nil {
		return nil, 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get expired serial numbers")
	}
	sns := make([]string, len(rows))
	var last int64
	for i, r := range rows {
		sns[i] = r.SN
		last = r.ID
	}
	return sns, last, nil
}

// GetSuspendedCertSerials returns every serial currently on certificateHold,
// the working set unsuspend tooling iterates (spec.md §4.6).
func (s *Store) GetSuspendedCertSerials(ctx context.Context, caID int64) ([]string, error) {
	var sns []string
	_, err := s.dbMap.Select(&sns, "SELECT sn FROM cert WHERE ca_id = ? AND rev = 1 AND rr = ?", caID, holdReasonCode)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get suspended cert serials")
	}
	return sns, nil
}

// RevokedEntry is the minimal per-certificate shape a CRL or delta CRL
// tbsCertList entry needs (spec.md §4.8).
type RevokedEntry struct {
	SN             string
	RevTime        int64
	Reason         int
	HasInvalidity  bool
	InvalidityTime int64
}

// GetRevokedCerts returns every currently revoked certificate under caID
// as of asOf, the full-CRL content source (spec.md §4.8).
func (s *Store) GetRevokedCerts(ctx context.Context, caID, asOf int64) ([]RevokedEntry, error) {
	var rows []CertRow
	_, err := s.dbMap.Select(&rows,
		"SELECT sn, rt, rr, rit FROM cert WHERE ca_id = ? AND rev = 1 AND rt <= ?", caID, asOf)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get revoked certs")
	}
	return rowsToRevokedEntries(rows), nil
}

// GetCertsForDeltaCRL returns every certificate revoked strictly after
// sinceTime (exclusive) that is still unexpired as of asOf, the
// "revoked since the base CRL" half of delta-CRL content (spec.md
// §4.8). The other half, certificates the base CRL listed as revoked
// that have since been un-revoked, comes from GetNowUnrevokedSerials.
func (s *Store) GetCertsForDeltaCRL(ctx context.Context, caID, sinceTime, asOf int64) ([]RevokedEntry, error) {
	var rows []CertRow
	_, err := s.dbMap.Select(&rows,
		"SELECT sn, rt, rr, rit FROM cert WHERE ca_id = ? AND rev = 1 AND rt > ? AND nafter > ?",
		caID, sinceTime, asOf)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get certs for delta crl")
	}
	return rowsToRevokedEntries(rows), nil
}

// GetNowUnrevokedSerials filters baseSerials (hex, the revoked set of a
// base CRL) down to those the store currently shows as NOT revoked,
// the "un-revoked since the base CRL" half of delta-CRL content (spec.md
// §4.8): each such serial must be reported in the delta with reason
// removeFromCRL.
func (s *Store) GetNowUnrevokedSerials(ctx context.Context, caID int64, baseSerials []string) ([]string, error) {
	if len(baseSerials) == 0 {
		return nil, nil
	}
	qmarks := make([]string, len(baseSerials))
	args := make([]interface{}, 0, len(baseSerials)+1)
	args = append(args, caID)
	for i, sn := range baseSerials {
		qmarks[i] = "?"
		args = append(args, sn)
	}
	var sns []string
	sqlText := "SELECT sn FROM cert WHERE ca_id = ? AND rev = 0 AND sn IN (" + strings.Join(qmarks, ",") + ")"
	_, err := s.dbMap.Select(&sns, sqlText, args...)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get now-unrevoked serials")
	}
	return sns, nil
}

func rowsToRevokedEntries(rows []CertRow) []RevokedEntry {
	out := make([]RevokedEntry, len(rows))
	for i, r := range rows {
		out[i] = RevokedEntry{
			SN:             r.SN,
			RevTime:        r.RevTime,
			Reason:         r.RevReason,
			HasInvalidity:  r.HasRevInvTime,
			InvalidityTime: r.RevInvTime,
		}
	}
	return out
}

// GetLatestSerialForSubjectLike finds the most recently issued,
// non-revoked certificate whose subject fingerprint matches subject,
// used by re-issuance/renewal lookups (spec.md §4.4's subject-fingerprint
// index).
func (s *Store) GetLatestSerialForSubjectLike(ctx context.Context, caID int64, subject string) (string, error) {
	fp := subjectFingerprint(subject)
	var sn string
	err := s.dbMap.SelectOne(&sn,
		"SELECT sn FROM cert WHERE ca_id = ? AND fp_s = ? AND rev = 0 ORDER BY nbefore DESC LIMIT 1", caID, fp)
	if err == sql.ErrNoRows {
		return "", pkierrors.NotFoundError("store: no unrevoked certificate found for subject under ca %d", caID)
	} else if err != nil {
		return "", pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get latest serial for subject")
	}
	return sn, nil
}

// AddCRL inserts a newly generated CRL (full or delta) row, assigning it
// a minted id.
func (s *Store) AddCRL(ctx context.Context, id int64, row CRLRow) error {
	row.ID = id
	if err := s.dbMap.Insert(&row); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: insert crl row")
	}
	return nil
}

// GetEncodedCRL returns the DER bytes of the latest full or delta CRL
// for caID.
func (s *Store) GetEncodedCRL(ctx context.Context, caID int64, delta bool) ([]byte, error) {
	var row CRLRow
	err := s.dbMap.SelectOne(&row,
		"SELECT * FROM crl WHERE ca_id = ? AND deltacrl = ? ORDER BY crl_no DESC LIMIT 1", caID, delta)
	if err == sql.ErrNoRows {
		return nil, pkierrors.NotFoundError("store: no crl found for ca %d (delta=%v)", caID, delta)
	} else if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get encoded crl")
	}
	return row.CRL, nil
}

// GetMaxCRLNumber returns the highest CRL number issued for caID, the
// next-number seed for both full and delta CRL generation (spec.md §4.8).
func (s *Store) GetMaxCRLNumber(ctx context.Context, caID int64) (int64, error) {
	var max sql.NullInt64
	err := s.dbMap.SelectOne(&max, "SELECT MAX(crl_no) FROM crl WHERE ca_id = ?", caID)
	if err != nil {
		return 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get max crl number")
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// GetThisUpdateOfCurrentCRL returns the thisUpdate timestamp of the
// latest full CRL, the reference point delta-CRL generation measures
// "since" from (spec.md §4.8).
func (s *Store) GetThisUpdateOfCurrentCRL(ctx context.Context, caID int64) (int64, error) {
	var thisUpdate sql.NullInt64
	err := s.dbMap.SelectOne(&thisUpdate,
		"SELECT thisupdate FROM crl WHERE ca_id = ? AND deltacrl = 0 ORDER BY crl_no DESC LIMIT 1", caID)
	if err == sql.ErrNoRows || !thisUpdate.Valid {
		return 0, pkierrors.NotFoundError("store: no full crl found for ca %d", caID)
	} else if err != nil {
		return 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get this update of current crl")
	}
	return thisUpdate.Int64, nil
}

// CleanupCRLs deletes superseded CRL rows older than the most recent
// keep generations, per the Open Question decision recorded in
// DESIGN.md ("keep" counts full-CRL generations, deltas anchored to a
// retained full CRL are kept alongside it).
func (s *Store) CleanupCRLs(ctx context.Context, caID int64, keep int) (int64, error) {
	if keep <= 0 {
		return 0, pkierrors.BadRequestError("store: keep must be positive, got %d", keep)
	}
	var keepNumbers []int64
	_, err := s.dbMap.Select(&keepNumbers,
		"SELECT crl_no FROM crl WHERE ca_id = ? AND deltacrl = 0 ORDER BY crl_no DESC LIMIT ?", caID, keep)
	if err != nil {
		return 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: cleanup crls: list retained full crl numbers")
	}
	if len(keepNumbers) == 0 {
		return 0, nil
	}
	floor := keepNumbers[len(keepNumbers)-1]
	res, err := s.dbMap.Exec(
		"DELETE FROM crl WHERE ca_id = ? AND ((deltacrl = 0 AND crl_no < ?) OR (deltacrl = 1 AND basecrl_no < ?))",
		caID, floor, floor)
	if err != nil {
		return 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: cleanup crls: delete")
	}
	return res.RowsAffected()
}

// GetPublishQueueEntries returns up to limit pending publish-queue rows
// for one publisher, the work-list the publish package's worker pool
// drains (spec.md §4.4's publish queue; §7 publish pipeline).
func (s *Store) GetPublishQueueEntries(ctx context.Context, publisherID int64, limit int) ([]PublishQueueRow, error) {
	var rows []PublishQueueRow
	sqlText := s.dialect.BuildSelectFirstSQL("SELECT pid, ca_id, cid FROM publishqueue WHERE pid = ?", "cid", limit)
	_, err := s.dbMap.Select(&rows, sqlText, publisherID)
	if err != nil {
		return nil, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: get publish queue entries")
	}
	return rows, nil
}

// AddToPublishQueue enqueues the single (publisher, ca, cert) tuple in
// row; fanning out to several publishers takes one call per publisher.
func (s *Store) AddToPublishQueue(ctx context.Context, row PublishQueueRow) error {
	if err := s.dbMap.Insert(&row); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: add to publish queue")
	}
	return nil
}

// RemoveFromPublishQueue deletes one drained entry after a successful
// publish.
func (s *Store) RemoveFromPublishQueue(ctx context.Context, row PublishQueueRow) error {
	_, err := s.dbMap.Exec("DELETE FROM publishqueue WHERE pid = ? AND ca_id = ? AND cid = ?",
		row.PublisherID, row.CAID, row.CertID)
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "store: remove from publish queue")
	}
	return nil
}

// ClearPublishQueue drops every pending entry for one publisher, the
// operator escape hatch for a publisher being decommissioned.
func (s *Store) ClearPublishQueue(ctx context.Context, publisherID int64) (int64, error) {
	res, err := s.dbMap.Exec("DELETE FROM publishqueue WHERE pid = ?", publisherID)
	if err != nil {
		return 0, pkierrors.Wrap(pkierrors.SystemFailure, err, "store: clear publish queue")
	}
	return res.RowsAffected()
}

// cachedSelect fetches sql text for key from the LRU, building it via
// build on a miss.
func (s *Store) cachedSelect(key string, build func() string) string {
	if cached, ok := s.cache.get(key); ok {
		return cached
	}
	sqlText := build()
	s.cache.put(key, sqlText)
	return sqlText
}
