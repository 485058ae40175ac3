// Package all registers every built-in storage backend. Import for side
// effects from binaries that should support all of them:
//
//	import _ "travelingest/internal/store/all"
package all

import (
	_ "travelingest/internal/store/mssql"
	_ "travelingest/internal/store/postgres"
	_ "travelingest/internal/store/sqlite"
)
