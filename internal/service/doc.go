// Package service orchestrates the scry commands on top of the domain,
// extraction and store packages.
//
// Every mutating operation takes the store's advisory lock before loading
// and releases it on every return path; read-only reports load without it.
package service
