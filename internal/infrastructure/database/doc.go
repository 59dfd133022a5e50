// Package database provides SQLite connectivity for the session history log.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements and the database file is
// restricted to owner read/write (0600).
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations directory and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database
