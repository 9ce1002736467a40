package domain

import (
	"fmt"
	"slices"
	"strings"
)

// SourceLocation identifies where a card's text lives. Lines are 1-based and
// the range is inclusive.
type SourceLocation struct {
	FilePath  string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// String formats the location as path:line or path:start-end.
func (l SourceLocation) String() string {
	if l.EndLine <= l.StartLine {
		return fmt.Sprintf("%s:%d", l.FilePath, l.StartLine)
	}
	return fmt.Sprintf("%s:%d-%d", l.FilePath, l.StartLine, l.EndLine)
}

// CardCandidate is a prompt/response/tags triple found in a note, before it
// has been reconciled against the known card set.
type CardCandidate struct {
	Prompt   string
	Response string
	Tags     []string
	Source   SourceLocation
}

// Validate checks that the candidate can become a card.
func (c CardCandidate) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt at %s", ErrMalformedCandidate, c.Source)
	}
	if c.Source.FilePath == "" {
		return fmt.Errorf("%w: missing source file", ErrMalformedCandidate)
	}
	return nil
}

// NormalizeTags lower-cases, trims, strips a leading '#', drops empty entries,
// de-duplicates and sorts the given tags. The input slice is not modified.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return out
}
