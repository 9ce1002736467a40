package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// CardID is the BLAKE2b-256 digest of a card's normalized content.
type CardID [blake2b.Size256]byte

// String returns the lowercase hex encoding of the id.
func (id CardID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first eight hex characters, for display.
func (id CardID) Short() string {
	return id.String()[:8]
}

// IsZero reports whether id is the zero value.
func (id CardID) IsZero() bool {
	return id == CardID{}
}

// Compare orders ids bytewise.
func (id CardID) Compare(other CardID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id CardID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *CardID) UnmarshalText(text []byte) error {
	parsed, err := ParseCardID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseCardID parses the 64 character hex form of an id.
func ParseCardID(s string) (CardID, error) {
	var id CardID
	if len(s) != hex.EncodedLen(len(id)) {
		return id, fmt.Errorf("%w: %q", ErrInvalidCardID, s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return CardID{}, fmt.Errorf("%w: %q", ErrInvalidCardID, s)
	}
	return id, nil
}

// HashCandidate computes the identity of a candidate from its content only.
// The source location does not participate.
func HashCandidate(c CardCandidate) CardID {
	return HashContent(c.Prompt, c.Response, c.Tags)
}

// HashContent hashes a prompt, response and tag set after normalization:
// prompt and response are whitespace-trimmed, tags go through NormalizeTags.
// Every field is length-prefixed so no two distinct inputs share an encoding.
func HashContent(prompt, response string, tags []string) CardID {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	writeField(h, strings.TrimSpace(prompt))
	writeField(h, strings.TrimSpace(response))

	norm := NormalizeTags(tags)
	writeLength(h, len(norm))
	for _, t := range norm {
		writeField(h, t)
	}

	var id CardID
	copy(id[:], h.Sum(nil))
	return id
}

func writeField(h hash.Hash, s string) {
	writeLength(h, len(s))
	_, _ = io.WriteString(h, s)
}

func writeLength(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, _ = h.Write(buf[:])
}
