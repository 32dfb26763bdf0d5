// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "retailetl/internal/storage/all"
//
// which makes the kinds "mssql" (alias "sqlserver"), "postgres" (alias "pgx")
// and "sqlite" available to storage.Open.
package all

import (
	_ "retailetl/internal/storage/mssql"
	_ "retailetl/internal/storage/postgres"
	_ "retailetl/internal/storage/sqlite"
)
