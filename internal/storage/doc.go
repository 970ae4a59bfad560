// Package storage persists the operator audit log written by the panel
// front-ends. Task data is never stored here; the backend owns it.
//
// Drivers:
//   - "file": append-only JSON Lines file
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
package storage
