// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "github.com/ysv-rs/ysv/internal/storage/all"
package all

import (
	_ "github.com/ysv-rs/ysv/internal/storage/mssql"
	_ "github.com/ysv-rs/ysv/internal/storage/mysql"
	_ "github.com/ysv-rs/ysv/internal/storage/postgres"
	_ "github.com/ysv-rs/ysv/internal/storage/sqlite"
)
