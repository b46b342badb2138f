// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "albumcsv/internal/storage/mssql"
	_ "albumcsv/internal/storage/postgres"
	_ "albumcsv/internal/storage/sqlite"
)
