package store

import (
	"context"
	"io/fs"
	"maps"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/domain/srs"
)

// Store persists snapshots. Implementations must make Save atomic: after a
// failed Save the previously saved snapshot is still what Load returns.
type Store interface {
	// Load returns the last saved snapshot, or an empty one when nothing has
	// been saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Backend names the implementation in logs and errors.
	Backend() string

	Close() error
}

// Fingerprint identifies the version of a source file that was last scanned.
type Fingerprint struct {
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// FingerprintOf returns the fingerprint of a stat result.
func FingerprintOf(info fs.FileInfo) Fingerprint {
	return Fingerprint{ModTime: info.ModTime().UTC(), Size: info.Size()}
}

// Equal reports whether both fingerprints describe the same file version.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// Snapshot is everything a Store persists.
type Snapshot struct {
	Cards  domain.CardSet
	Global *srs.GlobalState
	// Files maps absolute source paths to the fingerprint seen by the last
	// scan that read them.
	Files map[string]Fingerprint
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Cards:  make(domain.CardSet),
		Global: srs.NewGlobalState(),
		Files:  make(map[string]Fingerprint),
	}
}

// Normalize replaces nil members with empty values so callers can use the
// snapshot without nil checks.
func (s *Snapshot) Normalize() *Snapshot {
	if s.Cards == nil {
		s.Cards = make(domain.CardSet)
	}
	if s.Global == nil {
		s.Global = srs.NewGlobalState()
	}
	if s.Files == nil {
		s.Files = make(map[string]Fingerprint)
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Cards: s.Cards.Clone(),
		Files: maps.Clone(s.Files),
	}
	if s.Global != nil {
		out.Global = s.Global.Clone()
	}
	return out.Normalize()
}
