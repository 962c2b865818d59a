package markov

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Sentinel errors for the failure kinds the fallback chain recovers from.
// Both are signals consumed by the Engine, never surfaced to generation
// callers.
var (
	// ErrSourceUnavailable indicates the remote corpus fetch itself failed.
	ErrSourceUnavailable = errors.New("markov: corpus source unavailable")
	// ErrCorpusInsufficient indicates the cleaned corpus is too short to
	// build a useful model from.
	ErrCorpusInsufficient = errors.New("markov: corpus below minimum usable length")
)

// minCorpusChars is the minimum total length of usable cleaned lines before
// a corpus is accepted.
const minCorpusChars = 100

// minLineChars is the minimum length of a single corpus line after cleaning.
const minLineChars = 5

var (
	// Project-Gutenberg style "*** START OF ..." / "*** END OF ..." markers.
	boilerplateMarkerRe = regexp.MustCompile(`(?i)^\s*\*{3}\s*(start|end) of\b.*$`)
	// Structural header lines such as "CHAPTER IV." or "ACT 2".
	headerLineRe = regexp.MustCompile(`(?i)^\s*(chapter|act|scene|part|book|volume)\s+[0-9ivxlc]+\.?\s*$`)
	// Bracketed and parenthetical stage-direction-like tokens.
	bracketedRe     = regexp.MustCompile(`\[[^\]\n]*]`)
	parentheticalRe = regexp.MustCompile(`\([^)\n]*\)`)
	spaceRunRe      = regexp.MustCompile(`[ \t]+`)
)

// profanityWords is a small blocklist; a corpus line containing any of these
// as a standalone word is discarded during cleaning.
var profanityWords = []string{
	"fuck", "shit", "cunt", "bitch", "asshole", "bastard",
}

// CleanCorpus normalizes a raw text blob into trimmed, quality-filtered
// lines: boilerplate and header lines are dropped, bracketed stage-direction
// tokens and underscores are stripped, whitespace runs are collapsed, and
// lines that are too short, purely numeric, or letter-free are rejected.
func CleanCorpus(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if boilerplateMarkerRe.MatchString(line) || headerLineRe.MatchString(line) {
			continue
		}

		line = bracketedRe.ReplaceAllString(line, " ")
		line = parentheticalRe.ReplaceAllString(line, " ")
		line = strings.ReplaceAll(line, "_", "")
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))

		if !usableLine(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// usableLine applies the minimum-quality filter from the corpus contract.
func usableLine(line string) bool {
	if len([]rune(line)) < minLineChars {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	return !containsProfanity(line)
}

func containsProfanity(line string) bool {
	for _, word := range strings.Fields(strings.ToLower(line)) {
		word = strings.Trim(word, ".,!?;:'\"")
		for _, blocked := range profanityWords {
			if word == blocked {
				return true
			}
		}
	}
	return false
}

// LoadCorpus fetches raw text from the source and cleans it into corpus
// lines. Fetch failures wrap ErrSourceUnavailable and an undersized result
// wraps ErrCorpusInsufficient; both tell the fallback chain to advance to
// its next tier.
func LoadCorpus(ctx context.Context, source Source) ([]string, error) {
	payload, err := source.FetchCorpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	lines := CleanCorpus(payload.Text)

	total := 0
	for _, line := range lines {
		total += len(line)
	}
	if total < minCorpusChars {
		return nil, fmt.Errorf("%w: %d usable chars", ErrCorpusInsufficient, total)
	}

	return lines, nil
}
