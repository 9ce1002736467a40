package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// IgnoreMarker anywhere in a file excludes the whole file from extraction.
const IgnoreMarker = "@scry-ignore"

const (
	flashcardTag = "flashcard"
	brainMarker  = "🧠"
)

var (
	cardMarker = regexp.MustCompile(`#flashcard|🧠`)
	tagPattern = regexp.MustCompile(`#[\p{L}\p{N}_-]+`)
	separator  = regexp.MustCompile(`^\s*(?:-\s*-\s*-|\*\s*\*\s*\*)\s*$`)
)

// FileError reports a file that could not be read. Cards from that file
// must not be treated as missing.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Candidates lazily extracts candidates from files in order. A file that
// cannot be read yields a *FileError and extraction continues with the next
// file. Iteration stops early when ctx is cancelled, yielding ctx.Err().
// The sequence can be ranged over more than once.
func Candidates(ctx context.Context, files []string, logger *slog.Logger) iter.Seq2[domain.CardCandidate, error] {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "extractor"))

	return func(yield func(domain.CardCandidate, error) bool) {
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				yield(domain.CardCandidate{}, err)
				return
			}
			cards, err := ParseFile(path, log)
			if err != nil {
				if !yield(domain.CardCandidate{}, &FileError{Path: path, Err: err}) {
					return
				}
				continue
			}
			for _, c := range cards {
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

// ParseFile extracts the candidates of one file.
func ParseFile(path string, logger *slog.Logger) ([]domain.CardCandidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, path, logger)
}

// pending is a multi-line card whose terminating separator has not been
// seen yet.
type pending struct {
	prompt    string
	tags      []string
	lines     []string
	startLine int
}

// Parse extracts candidates from r, attributing them to path. Malformed
// fragments are logged at warn and skipped.
func Parse(r io.Reader, path string, logger *slog.Logger) ([]domain.CardCandidate, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if strings.Contains(text, IgnoreMarker) {
		logger.Debug("ignoring file", slog.String("file", path))
		return nil, nil
	}

	var (
		cards []domain.CardCandidate
		card  *pending
	)

	malformed := func(line int, reason string) {
		err := fmt.Errorf("%w: %s", domain.ErrMalformedCandidate, reason)
		logger.Warn("skipping card",
			slog.String("file", path),
			slog.Int("line", line),
			slog.String("error", err.Error()))
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case cardMarker.MatchString(line):
			if card != nil {
				malformed(card.startLine, fmt.Sprintf("card not terminated before line %d", lineNo))
				card = nil
			}

			if i := strings.LastIndex(line, ":"); i >= 0 {
				c, err := oneLineCard(line[:i], line[i+1:], path, lineNo)
				if err != nil {
					malformed(lineNo, err.Error())
					continue
				}
				cards = append(cards, c)
				continue
			}

			if !strings.Contains(line, "#"+flashcardTag) {
				// A brain marker alone only introduces one-line cards.
				continue
			}
			prompt := stripTags(line)
			if prompt == "" {
				malformed(lineNo, "empty prompt")
				continue
			}
			card = &pending{prompt: prompt, tags: parseTags(line), startLine: lineNo}

		case separator.MatchString(line):
			if card == nil {
				continue
			}
			cards = append(cards, domain.CardCandidate{
				Prompt:   card.prompt,
				Response: strings.Join(card.lines, "\n"),
				Tags:     card.tags,
				Source: domain.SourceLocation{
					FilePath:  path,
					StartLine: card.startLine,
					EndLine:   lineNo,
				},
			})
			card = nil

		case card != nil:
			card.lines = append(card.lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if card != nil {
		malformed(card.startLine, "card not terminated before end of file")
	}

	return cards, nil
}

func oneLineCard(before, after, path string, line int) (domain.CardCandidate, error) {
	c := domain.CardCandidate{
		Prompt:   strings.TrimSpace(before),
		Response: stripTags(after),
		Tags:     parseTags(after),
		Source:   domain.SourceLocation{FilePath: path, StartLine: line, EndLine: line},
	}
	if c.Prompt == "" {
		return c, errors.New("empty prompt")
	}
	return c, nil
}

// parseTags returns the #tags of s without the card marker tag.
func parseTags(s string) []string {
	var tags []string
	for _, m := range tagPattern.FindAllString(s, -1) {
		tag := strings.ToLower(m[1:])
		if tag == flashcardTag {
			continue
		}
		tags = append(tags, tag)
	}
	return domain.NormalizeTags(tags)
}

// stripTags returns the text before the first tag or brain marker.
func stripTags(s string) string {
	if i := strings.IndexAny(s, "#"+brainMarker); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
