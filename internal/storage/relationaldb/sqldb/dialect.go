package sqldb

import (
	"strconv"
	"strings"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written with ? placeholders and rebound per driver.
type dialect struct {
	name      string
	rowLocks  bool
	numbered  bool
	driverPkg string
}

var (
	sqliteDialect   = dialect{name: relationaldb.DriverSQLite, driverPkg: "sqlite"}
	postgresDialect = dialect{name: relationaldb.DriverPostgres, rowLocks: true, numbered: true, driverPkg: "postgres"}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case relationaldb.DriverSQLite:
		return sqliteDialect, nil
	case relationaldb.DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, relationaldb.ErrInvalidDriver
	}
}

// rebind rewrites ? placeholders into $1, $2, ... for PostgreSQL.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
