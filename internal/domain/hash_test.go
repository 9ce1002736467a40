package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCandidate_TagOrderInvariance(t *testing.T) {
	t.Parallel()

	a := CardCandidate{Prompt: "capital of France", Response: "Paris", Tags: []string{"geo", "europe"}}
	b := CardCandidate{Prompt: "capital of France", Response: "Paris", Tags: []string{"Europe", "#geo", "geo"}}

	assert.Equal(t, HashCandidate(a), HashCandidate(b))
}

func TestHashCandidate_IgnoresSource(t *testing.T) {
	t.Parallel()

	a := CardCandidate{Prompt: "p", Response: "r", Source: SourceLocation{FilePath: "a.md", StartLine: 1, EndLine: 1}}
	b := CardCandidate{Prompt: "p", Response: "r", Source: SourceLocation{FilePath: "notes/b.md", StartLine: 40, EndLine: 44}}

	assert.Equal(t, HashCandidate(a), HashCandidate(b))
}

func TestHashCandidate_ContentChangeIsNewIdentity(t *testing.T) {
	t.Parallel()

	base := CardCandidate{Prompt: "What is 2+2?", Response: "4", Tags: []string{"math"}}
	baseID := HashCandidate(base)

	testCases := []struct {
		name   string
		mutate func(c CardCandidate) CardCandidate
	}{
		{
			name: "prompt changed",
			mutate: func(c CardCandidate) CardCandidate {
				c.Prompt = "What is 2+3?"
				return c
			},
		},
		{
			name: "response changed",
			mutate: func(c CardCandidate) CardCandidate {
				c.Response = "four"
				return c
			},
		},
		{
			name: "tag added",
			mutate: func(c CardCandidate) CardCandidate {
				c.Tags = []string{"math", "easy"}
				return c
			},
		},
		{
			name: "tag removed",
			mutate: func(c CardCandidate) CardCandidate {
				c.Tags = nil
				return c
			},
		},
		{
			name: "text moved between prompt and response",
			mutate: func(c CardCandidate) CardCandidate {
				c.Prompt = "What is 2+2?4"
				c.Response = ""
				return c
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.NotEqual(t, baseID, HashCandidate(tc.mutate(base)))
		})
	}
}

func TestHashCandidate_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	a := HashContent("  prompt\n", "\tresponse ", nil)
	b := HashContent("prompt", "response", []string{"", "  "})

	assert.Equal(t, a, b)
}

func TestCardID_TextRoundTrip(t *testing.T) {
	t.Parallel()

	id := HashContent("p", "r", []string{"t"})
	s := id.String()
	require.Len(t, s, 64)
	assert.Equal(t, s[:8], id.Short())

	parsed, err := ParseCardID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseCardID("abc")
	assert.ErrorIs(t, err, ErrInvalidCardID)

	_, err = ParseCardID(string(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrInvalidCardID)
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NormalizeTags(nil))
	assert.Nil(t, NormalizeTags([]string{" ", "#"}))
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{"#B", "a", " b "}))

	in := []string{"z", "a"}
	NormalizeTags(in)
	assert.Equal(t, []string{"z", "a"}, in, "input must not be reordered")
}
