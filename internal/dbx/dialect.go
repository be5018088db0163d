package dbx

import (
	"strconv"
	"strings"
)

// Dialect captures the few SQL differences between the supported backends.
// Statements are written with '?' placeholders and rebound per dialect.
type Dialect interface {
	// Name is both the database/sql driver name and the goose dialect.
	Name() string
	// Rebind rewrites '?' placeholders into the backend's native form.
	Rebind(query string) string
	// JSONText returns an expression extracting a text value from a JSON
	// column. The expression holds exactly one placeholder bound to JSONPath.
	JSONText(column string) string
	// JSONPath renders path segments into the argument expected by JSONText.
	JSONPath(path []string) any
}

// Postgres is the pgx-backed production dialect.
type Postgres struct{}

func (Postgres) Name() string { return "pgx" }

func (Postgres) Rebind(query string) string {
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

func (Postgres) JSONText(column string) string {
	return "(" + column + " #>> CAST(? AS text[]))"
}

func (Postgres) JSONPath(path []string) any {
	return "{" + strings.Join(path, ",") + "}"
}

// SQLite is used for local runs and integration tests.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Rebind(query string) string { return query }

func (SQLite) JSONText(column string) string {
	return "CAST(json_extract(" + column + ", ?) AS TEXT)"
}

func (SQLite) JSONPath(path []string) any {
	var b strings.Builder
	b.WriteString("$")
	for _, p := range path {
		b.WriteString(`."`)
		b.WriteString(p)
		b.WriteString(`"`)
	}
	return b.String()
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case "pgx", "postgres":
		return Postgres{}, true
	case "sqlite3", "sqlite":
		return SQLite{}, true
	}
	return nil, false
}
