// Package database provides SQLite connectivity for the Zigbee gateway.
//
// It opens the device catalogue database with WAL mode and a busy timeout,
// and applies embedded schema migrations tracked in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
