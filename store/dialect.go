package store

import "fmt"

// Dialect abstracts the handful of SQL constructs that differ across the
// backing databases boulder's sa package historically supported (sqlite
// for tests, MySQL in production). spec.md §9 leaves the backing store
// unspecified beyond "relational"; we keep the same seam, though
// MySQLDialect is the only implementation in this package.
type Dialect interface {
	// Name identifies the dialect for logging.
	Name() string
	// Placeholder returns the positional-parameter marker for argument
	// index i (1-based), e.g. "?" for MySQL.
	Placeholder(i int) string
	// BuildSelectFirstSQL wraps a SELECT so it returns at most n rows in
	// orderBy order, e.g. appending "LIMIT n".
	BuildSelectFirstSQL(base, orderBy string, n int) string
	// SupportsInArray reports whether "col IN (?, ?, ...)" expansion is
	// required (true) or native array binding is available (false).
	SupportsInArray() bool
}

// MySQLDialect grounds on the borp/MySQL pairing boulder's sa/database.go
// wires up via github.com/go-sql-driver/mysql.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) Placeholder(int) string { return "?" }

func (MySQLDialect) BuildSelectFirstSQL(base, orderBy string, n int) string {
	return fmt.Sprintf("%s ORDER BY %s LIMIT %d", base, orderBy, n)
}

func (MySQLDialect) SupportsInArray() bool { return true }
