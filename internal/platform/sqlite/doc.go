// Package sqlite implements store.Store on an SQLite database file.
//
// The schema is managed by goose migrations embedded in the binary and
// applied when the store is opened. Save replaces the whole snapshot inside
// one transaction.
package sqlite
