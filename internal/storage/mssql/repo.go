// Package mssql loads output rows into SQL Server through the go-mssqldb
// bulk copy API. Every ysv column is NVARCHAR(MAX), so rows arrive as strings
// and no type mapping happens here.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/ysv-rs/ysv/internal/ddl"
)

type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository implements storage.Repository for one target table.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository checks the DSN before dialing so a malformed -dsn fails with
// the parser's message rather than a connection error.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom loads one batch. The batch commits as a unit: either every row is
// in the table afterwards or none is.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (n int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			n = 0
		}
	}()

	if n, err = bulkInsert(ctx, tx, r.cfg.Table, columns, rows); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// bulkInsert streams rows through a CopyIn statement. The driver buffers the
// Exec calls; the final argumentless Exec sends them.
func bulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	opts := mssql.BulkOptions{RowsPerBatch: len(rows)}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, opts, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("bulk copy row %d of %d: %w", i+1, len(rows), err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk copy flush: %w", err)
	}
	return res.RowsAffected()
}

// Exec runs DDL such as the guarded CREATE TABLE. Blank text is a no-op.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, sqlText)
	if err != nil {
		return fmt.Errorf("mssql exec: %w", err)
	}
	return nil
}

func msIdent(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }

// Dialect renders T-SQL. There is no CREATE TABLE IF NOT EXISTS, so creation
// is wrapped in an OBJECT_ID check.
var Dialect = ddl.Dialect{
	Name:  "mssql",
	Quote: msIdent,
	Guard: func(fqn, create string) string {
		lit := strings.ReplaceAll(fqn, "'", "''")
		return "IF OBJECT_ID(N'" + lit + "', N'U') IS NULL\nBEGIN\n" + create + "\nEND"
	},
}

func CreateTableSQL(table string, columns []string) (string, error) {
	return ddl.BuildCreateTableSQL(Dialect, ddl.TextTable(table, columns, "NVARCHAR(MAX)"))
}
