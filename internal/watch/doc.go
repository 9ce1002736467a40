// Package watch turns file system notifications under a set of note roots
// into debounced batches of changed and removed paths.
//
// A Watcher only signals. The handler it calls runs on the watcher's own
// goroutine, so scans triggered by consecutive batches never overlap.
package watch
