// Package drivers blank-imports the database/sql drivers sql.Open's
// dialect names resolve to, matching the teacher's examples/shop/main.go
// convention of registering drivers at the edge rather than inside the
// dialect/sql library itself.
package drivers

import (
	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"
)
