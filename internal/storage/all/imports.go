// Package all links every storage backend into the binary. Importing it for
// side effects registers the backends and their DDL bootstrappers with the
// storage factory.
package all

import (
	_ "github.com/Ananya0222/entity-data-processor/internal/storage/mssql"
	_ "github.com/Ananya0222/entity-data-processor/internal/storage/mysql"
	_ "github.com/Ananya0222/entity-data-processor/internal/storage/postgres"
	_ "github.com/Ananya0222/entity-data-processor/internal/storage/sqlite"
)
