// Package database provides SQLite connectivity for FluxHaus Core.
//
// It owns the connection (WAL mode, busy timeout, single writer) and the
// schema migration runner. The schema itself lives in the top-level
// migrations package and is passed to Migrate as an fs.FS.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive. Each version has an .up.sql file and may have a
// matching .down.sql used only by MigrateDown.
package database
