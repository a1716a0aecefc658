package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Backend family names. Exactly one is active for the lifetime of a process.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// sqliteTimeLayout is the on-disk format for SQLite timestamps.
//
// FIXED WIDTH ON PURPOSE:
// SQLite has no timestamp type; we store TEXT. Comparisons like
// "expires_at > ?" are then plain string comparisons, which only order
// correctly when every value has the same width and the same zone.
// Three fractional digits + "Z" matches strftime('%Y-%m-%dT%H:%M:%fZ').
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

// Dialect is everything that differs between the two backend families.
//
// Query code never checks which backend it runs on. It writes SQL with "?"
// placeholders and hands time values over as time.Time; the Dialect chosen
// at startup does the translation.
type Dialect interface {
	// Name is the backend family (BackendSQLite or BackendPostgres).
	Name() string
	// DriverName is the database/sql driver registered for this family.
	DriverName() string
	// Rebind rewrites neutral "?" placeholders into the backend's syntax.
	Rebind(query string) string
	// TimeArg encodes a time value as a query argument.
	TimeArg(t time.Time) any
	// GooseDialect names the goose migration dialect.
	GooseDialect() string
}

// DialectFor returns the Dialect for a backend family name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case BackendSQLite:
		return sqliteDialect{}, nil
	case BackendPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("db: unknown backend %q", name)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return BackendSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) GooseDialect() string {
	return "sqlite3"
}

// Rebind is the identity: SQLite already understands "?".
func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) TimeArg(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}

type postgresDialect struct{}

func (postgresDialect) Name() string         { return BackendPostgres }
func (postgresDialect) DriverName() string   { return "pgx" }
func (postgresDialect) GooseDialect() string { return "postgres" }

func (postgresDialect) Rebind(query string) string {
	return rebindDollar(query)
}

func (postgresDialect) TimeArg(t time.Time) any {
	return t.UTC()
}

// rebindDollar turns each "?" into $1, $2, ... in order of appearance.
//
// The scan is syntax-aware enough for the statements this repo writes:
// a "?" inside a '...' string literal, a "..." quoted identifier, a
// -- line comment or a /* block comment */ is left alone.
func rebindDollar(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(query, i, c)
			b.WriteString(query[i:end])
			i = end - 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+2+end+2])
			i += 2 + end + 1
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled quote ('' or "") is an escaped quote, not the end of the run.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}
