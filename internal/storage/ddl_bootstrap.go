package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBuilder renders a backend's CREATE TABLE script for a table whose
// columns all hold text.
type DDLBuilder func(table string, columns []string) (string, error)

var (
	ddlMu       sync.RWMutex
	ddlBuilders = map[string]DDLBuilder{}
)

// RegisterDDL installs the table bootstrapper for kind.
func RegisterDDL(kind string, b DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlBuilders[kind] = b
}

// EnsureTable creates cfg.Table with one text column per cfg.Columns entry
// unless it already exists.
func EnsureTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	b, ok := ddlBuilders[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper for storage.kind=%s", cfg.Kind)
	}

	stmt, err := b(cfg.Table, cfg.Columns)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
