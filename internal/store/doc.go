// Package store defines how the card set is persisted.
//
// A Store loads and saves a whole Snapshot (cards, global learning state and
// file fingerprints) at once; every Save is all-or-nothing. Concrete
// backends live under internal/platform. Mutating commands serialize on an
// advisory FileLock in the store directory.
package store
