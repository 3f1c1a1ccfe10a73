package store

import (
	"database/sql"

	"github.com/letsencrypt/borp"
)

// newDbMap wires the row types in model.go to borp's table mapper, the
// same ORM boulder's sa package depends on (sa/database.go). borp is a
// boulder-maintained fork of gorp; the table-mapping API is unchanged
// from gorp, so AddTableWithName/SetKeys/ColMap below mirror sa/model.go.
func newDbMap(db *sql.DB, dialect borp.Dialect) *borp.DbMap {
	dbmap := &borp.DbMap{Db: db, Dialect: dialect}

	dbmap.AddTableWithName(CARow{}, "ca").SetKeys(true, "ID")
	dbmap.AddTableWithName(ProfileRow{}, "profile").SetKeys(true, "ID")

	certTable := dbmap.AddTableWithName(CertRow{}, "cert")
	certTable.SetKeys(true, "ID")
	certTable.ColMap("SN").SetMaxSize(64)
	certTable.ColMap("Subject").SetMaxSize(2048)
	certTable.ColMap("ReqSubject").SetMaxSize(2048)
	certTable.ColMap("SHA1").SetMaxSize(40)
	certTable.ColMap("FPKey").SetMaxSize(64)
	certTable.ColMap("TxID").SetMaxSize(64)

	dbmap.AddTableWithName(CRLRow{}, "crl").SetKeys(true, "ID")
	dbmap.AddTableWithName(PublishQueueRow{}, "publishqueue").SetKeys(false, "PublisherID", "CAID", "CertID")

	return dbmap
}
