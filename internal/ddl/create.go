// Package ddl renders CREATE TABLE statements for the output table of a
// database sink. Every ysv output column is text, so the model is small:
// a table name plus ordered columns, rendered through a per-backend Dialect.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef is one destination column.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef is a destination table. FQN may be schema-qualified ("s.t").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TextTable builds a TableDef where every column is a nullable sqlType.
func TextTable(fqn string, names []string, sqlType string) TableDef {
	cols := make([]ColumnDef, len(names))
	for i, n := range names {
		cols[i] = ColumnDef{Name: n, SQLType: sqlType, Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: cols}
}

// Dialect captures the per-backend differences in CREATE TABLE syntax.
type Dialect struct {
	Name string

	// Quote quotes a single identifier part.
	Quote func(ident string) string

	// Guard wraps the bare CREATE TABLE statement so it is a no-op when the
	// table already exists. It receives the unquoted FQN. Nil means the
	// statement is emitted as CREATE TABLE IF NOT EXISTS.
	Guard func(fqn, create string) string
}

// QuoteFQN quotes each dot-separated part of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// BuildCreateTableSQL renders t in dialect d:
//
//	CREATE TABLE IF NOT EXISTS <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...
//	);
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, c.Name)
		}
		def := d.Quote(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	head := "CREATE TABLE IF NOT EXISTS "
	if d.Guard != nil {
		head = "CREATE TABLE "
	}
	create := head + d.QuoteFQN(fqn) + " (\n  " + strings.Join(cols, ",\n  ") + "\n);"
	if d.Guard != nil {
		return d.Guard(fqn, create), nil
	}
	return create, nil
}

// DoubleQuote quotes an identifier ANSI style ("a""b").
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
