package markov

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode"
)

const (
	// recentCapacity is how many recently used beginnings are remembered to
	// reduce repetition across successive calls.
	recentCapacity = 5
	// pickAttempts bounds the search for a beginning that is neither
	// recently used nor carrying formatting artifacts.
	pickAttempts = 20
	// batchAttemptsFactor bounds GenerateBatch to count*factor attempts.
	batchAttemptsFactor = 10
	// minKeepChars is the threshold below which a post-cleaned result is
	// discarded in favor of the original walk output.
	minKeepChars = 10
	// minBatchChars and minBatchWords define the degenerate-output filter
	// applied by GenerateBatch.
	minBatchChars = 20
	minBatchWords = 3
)

// generateOptions is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength    int
	maxSentences int
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument in GenerateOne and GenerateBatch.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the maximum number of characters to generate. The walk
// may stop earlier at a dead end or once the sentence budget is spent.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithMaxSentences caps how many terminal punctuation marks (., !, ?) the
// walk may emit before stopping.
func WithMaxSentences(n int) GenerateOption {
	return func(o *generateOptions) { o.maxSentences = n }
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		maxLength:    500,
		maxSentences: 2,
	}
}

// Generator performs weighted random walks over a Model. It keeps a small
// ring of recently used beginnings so repeated calls don't open the same
// way. A Generator is not safe for concurrent use; the Engine serializes
// access to it.
type Generator struct {
	model  *Model
	recent *recentRing
	logger *slog.Logger
}

// NewGenerator creates a Generator over the given model.
func NewGenerator(model *Model) *Generator {
	return &Generator{
		model:  model,
		recent: newRecentRing(recentCapacity),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Generator. By default, all logs are discarded.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// GenerateOne produces a single bounded string from the model. It never
// returns an error: an empty model yields an empty string, and a walk that
// hits a dead end simply ends there.
func (g *Generator) GenerateOne(opts ...GenerateOption) string {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}

	if g.model.Empty() {
		return ""
	}

	beginning := g.pickBeginning()
	out := []rune(beginning)
	sentences := 0

	for len(out) < options.maxLength {
		key := string(out[len(out)-g.model.Order:])
		successors := g.model.Ngrams[key]
		if len(successors) == 0 {
			// Natural end: this prefix closed a line in the corpus.
			break
		}

		// Uniform pick over a non-deduplicated list is the frequency
		// weighting; repeats in the list bias toward common successors.
		next := successors[rand.IntN(len(successors))]
		out = append(out, next)

		if next == '.' || next == '!' || next == '?' {
			sentences++
			if sentences >= options.maxSentences {
				break
			}
		}
	}

	if len(out) > options.maxLength {
		out = out[:options.maxLength]
	}

	raw := string(out)
	result := cleanGenerated(raw)
	if len([]rune(result)) < minKeepChars {
		// A successful walk is never thrown away for cosmetic reasons.
		result = strings.TrimSpace(raw)
	}

	g.recent.Push(beginning)

	g.logger.Debug("Generated text",
		slog.String("beginning", beginning),
		slog.Int("length", len([]rune(result))),
		slog.Int("sentences", sentences),
	)

	return result
}

// GenerateBatch produces up to count acceptable strings, discarding
// degenerate outputs. It gives up after count*batchAttemptsFactor attempts
// and may return fewer results than requested, never an error.
func (g *Generator) GenerateBatch(count int, opts ...GenerateOption) []string {
	results := make([]string, 0, count)
	for attempts := 0; attempts < count*batchAttemptsFactor && len(results) < count; attempts++ {
		s := g.GenerateOne(opts...)
		if acceptableOutput(s) {
			results = append(results, s)
		}
	}
	if len(results) < count {
		g.logger.Debug("Batch generation exhausted its attempt budget",
			slog.Int("requested", count),
			slog.Int("produced", len(results)),
		)
	}
	return results
}

// pickBeginning tries to find a beginning that is not in the recent ring and
// carries no formatting artifacts, falling back to any random beginning once
// the attempt budget runs out.
func (g *Generator) pickBeginning() string {
	beginnings := g.model.Beginnings
	for i := 0; i < pickAttempts; i++ {
		candidate := beginnings[rand.IntN(len(beginnings))]
		if g.recent.Contains(candidate) || hasArtifacts(candidate) {
			continue
		}
		return candidate
	}
	return beginnings[rand.IntN(len(beginnings))]
}

// hasArtifacts reports leftover formatting noise that cleaning should have
// removed but can survive mid-line.
func hasArtifacts(s string) bool {
	return strings.ContainsAny(s, "_[]{}")
}

// cleanGenerated strips residual stage-direction tokens from a walk result
// and collapses whitespace.
func cleanGenerated(s string) string {
	s = bracketedRe.ReplaceAllString(s, " ")
	s = parentheticalRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "_", "")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// acceptableOutput applies the degenerate-output filter for batch results.
func acceptableOutput(s string) bool {
	if len([]rune(s)) < minBatchChars {
		return false
	}
	if len(strings.Fields(s)) < minBatchWords {
		return false
	}
	if hasArtifacts(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	// All numeric or all punctuation.
	return false
}
