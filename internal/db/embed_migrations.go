package db

import "embed"

// MigrationFS holds the sheet_tables / sheet_rows schema. Applied by cmd/migrate and, when
// AUTO_MIGRATE is set, by cmd/server before the table store is dialed.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
