package markov

// DefaultOrder is the prefix length used when no explicit order is configured.
const DefaultOrder = 5

// Model is a fixed-order character-level n-gram index built from a line
// corpus. Ngrams maps each observed prefix of exactly Order runes to the
// characters seen immediately after it, and Beginnings holds the first Order
// runes of every qualifying corpus line.
//
// Successor and beginning lists are deliberately not deduplicated: a uniform
// random pick over a list with repeats reproduces frequency-weighted sampling
// without storing counts. Deduplicating them would flatten the statistical
// character of the output.
type Model struct {
	Order      int
	Ngrams     map[string][]rune
	Beginnings []string
}

// BuildModel constructs a Model of the given order from cleaned corpus lines.
// Lines shorter than the order are skipped. A prefix that never recorded a
// successor simply has no Ngrams entry, which the generator treats as the
// natural end of a line.
//
// The build is a single pass over the corpus: one map visit and at most one
// append per character position.
func BuildModel(lines []string, order int) *Model {
	if order <= 0 {
		order = DefaultOrder
	}

	m := &Model{
		Order:  order,
		Ngrams: make(map[string][]rune),
	}

	for _, line := range lines {
		runes := []rune(line)
		if len(runes) < order {
			continue
		}

		m.Beginnings = append(m.Beginnings, string(runes[:order]))

		for i := 0; i+order < len(runes); i++ {
			key := string(runes[i : i+order])
			m.Ngrams[key] = append(m.Ngrams[key], runes[i+order])
		}
	}

	return m
}

// Empty reports whether the model has no usable beginnings. Generation from
// an empty model returns an empty string rather than an error.
func (m *Model) Empty() bool {
	return m == nil || len(m.Beginnings) == 0
}
