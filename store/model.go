// Package store implements the persistent certificate store spec.md §4.4
// and §6 describe: CA/Profile/Cert/CRL/PublishQueue rows addressed by
// monotonic id, by (CA, serial), by subject fingerprint, and by
// transaction id, backed by borp (the gorp fork boulder itself moved to)
// over MySQL.
package store

import "math/big"

// CARow mirrors the CA table (spec.md §6).
type CARow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Status       string `db:"status"` // "active" | "inactive"
	NextCRLNo    int64  `db:"next_crlno"`
	CRLSignerName string `db:"crl_signer_name"`
	Subject      string `db:"subject"`
	RevInfo      []byte `db:"rev_info"` // nil unless the CA itself is revoked
	Cert         []byte `db:"cert"`
	SignerType   string `db:"signer_type"`
	SignerConf   []byte `db:"signer_conf"`
	CertChain    []byte `db:"certchain"`
	Conf         []byte `db:"conf"`
}

// ProfileRow mirrors the PROFILE table.
type ProfileRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Type string `db:"type"`
	Conf []byte `db:"conf"`
}

// CertRow mirrors the CERT table. Serial is stored as lowercase hex and
// timestamps as seconds since the Unix epoch (spec.md §4.4, §6).
type CertRow struct {
	ID            int64  `db:"id"`
	LUpdate       int64  `db:"lupdate"`
	SN            string `db:"sn"` // lowercase hex
	Subject       string `db:"subject"`
	FPSubject     int64  `db:"fp_s"`
	FPReqSubject  int64  `db:"fp_rs"` // 0 if absent/equal
	HasReqSubject bool   `db:"-"`
	NotBefore     int64  `db:"nbefore"`
	NotAfter      int64  `db:"nafter"`
	Revoked       bool   `db:"rev"`
	ProfileID     int64  `db:"pid"`
	CAID          int64  `db:"ca_id"`
	RequestorID   int64  `db:"rid"`
	UserID        int64  `db:"uid"`
	EndEntity     bool   `db:"ee"`
	ReqType       string `db:"rtype"`
	TxID          string `db:"tid"`
	SHA1          string `db:"sha1"`
	ReqSubject    string `db:"req_subject"`
	CRLScope      int64  `db:"crl_scope"`
	Cert          []byte `db:"cert"` // DER
	FPKey         string `db:"fp_k"`
	RevReason     int    `db:"rr"`
	RevTime       int64  `db:"rt"`
	RevInvTime    int64  `db:"rit"`
	HasRevInvTime bool   `db:"-"`
}

// CRLRow mirrors the CRL table.
type CRLRow struct {
	ID           int64  `db:"id"`
	CAID         int64  `db:"ca_id"`
	CRLNo        int64  `db:"crl_no"`
	ThisUpdate   int64  `db:"thisupdate"`
	NextUpdate   int64  `db:"nextupdate"`
	HasNextUpdate bool  `db:"-"`
	DeltaCRL     bool   `db:"deltacrl"`
	BaseCRLNo    int64  `db:"basecrl_no"`
	HasBaseCRLNo bool   `db:"-"`
	CRLScope     int64  `db:"crl_scope"`
	CRL          []byte `db:"crl"` // DER
}

// PublishQueueRow mirrors the PUBLISHQUEUE table.
type PublishQueueRow struct {
	PublisherID int64 `db:"pid"`
	CAID        int64 `db:"ca_id"`
	CertID      int64 `db:"cid"`
}

// RevocationInfo is the transient revocation payload passed to RevokeCert.
type RevocationInfo struct {
	Reason         int
	Time           int64
	InvalidityTime int64
	HasInvalidity  bool
}

// CertWithRevInfo bundles a CertRow with its decoded revocation state,
// the return type of RevokeCert and GetCertWithRevInfo.
type CertWithRevInfo struct {
	Cert CertRow
	Rev  RevocationInfo
}

// SerialToHex and HexToSerial are the canonical (spec.md §4.4 "Serial
// numbers persist as lowercase hex") conversions between the wire
// representation and storage representation of a certificate serial.
func SerialToHex(serial *big.Int) string {
	return new(big.Int).Set(serial).Text(16)
}

func HexToSerial(hex string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(hex, 16)
	return n, ok
}
