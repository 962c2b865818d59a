package markov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// CorpusStats is the optional summary a corpus source may attach to its
// payload. It travels with the cached text so a reduced cache tier can scale
// it.
type CorpusStats struct {
	Lines int `json:"lines"`
	Chars int `json:"chars"`
}

// SourcePayload is the response contract of an upstream corpus source.
type SourcePayload struct {
	Text  string       `json:"text"`
	Stats *CorpusStats `json:"stats,omitempty"`
}

// Source supplies raw corpus text. Implementations report errors rather than
// panicking; the Engine converts any failure into a fallback-tier advance.
type Source interface {
	FetchCorpus(ctx context.Context) (*SourcePayload, error)
}

// maxSourceBytes caps how much of a single upstream response is read.
const maxSourceBytes = 16 << 20

// HTTPSource fetches corpus text over HTTP from one or more URLs and
// concatenates the results. Responses may be either a JSON object matching
// SourcePayload or a plain text body.
type HTTPSource struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSource creates a source over the given URLs. A nil client falls
// back to a client with a 30 second timeout.
func NewHTTPSource(urls []string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		urls:   urls,
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the source. By default, all logs are discarded.
func (s *HTTPSource) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// FetchCorpus requests every configured URL and concatenates whatever text
// they return. It fails only if no URL yields any text; a partial result
// from a subset of sources is still a success.
func (s *HTTPSource) FetchCorpus(ctx context.Context) (*SourcePayload, error) {
	if len(s.urls) == 0 {
		return nil, errors.New("no corpus urls configured")
	}

	var parts []string
	stats := &CorpusStats{}
	var lastErr error

	for _, url := range s.urls {
		payload, err := s.fetchOne(ctx, url)
		if err != nil {
			s.logger.WarnContext(ctx, "Corpus fetch failed",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		parts = append(parts, payload.Text)
		if payload.Stats != nil {
			stats.Lines += payload.Stats.Lines
			stats.Chars += payload.Stats.Chars
		}
	}

	if len(parts) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, errors.New("all corpus sources returned empty text")
	}

	text := strings.Join(parts, "\n")
	if stats.Chars == 0 {
		stats = &CorpusStats{Lines: strings.Count(text, "\n") + 1, Chars: len(text)}
	}
	return &SourcePayload{Text: text, Stats: stats}, nil
}

func (s *HTTPSource) fetchOne(ctx context.Context, url string) (*SourcePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("reading corpus body: %w", err)
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload SourcePayload
		if err := json.Unmarshal(body, &payload); err == nil && payload.Text != "" {
			return &payload, nil
		}
		// Fall through and treat an unparseable body as plain text.
	}

	if trimmed == "" {
		return nil, fmt.Errorf("empty corpus body from %s", url)
	}
	return &SourcePayload{Text: string(body)}, nil
}
