package markov

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/calyptra/prosegen/pkg/textcache"
)

// PlaceholderText is the deterministic worst-case output of GenerateOne.
// Callers get this string, never an error, when no text could be produced.
const PlaceholderText = "Generated text could not be created."

const (
	// DefaultCacheKey identifies the corpus cache entry.
	DefaultCacheKey = "prosegen:corpus"
	// DefaultCacheTTL is how long a cached corpus counts as fresh.
	DefaultCacheTTL = 24 * time.Hour
)

// EngineState tracks where an Engine is in its load lifecycle.
type EngineState int

const (
	StateUninitialized EngineState = iota
	StateLoading
	StateReady
)

// String implements fmt.Stringer.
func (s EngineState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// LoadTier records which fallback tier satisfied the most recent load. It is
// observability only; every tier ends in StateReady.
type LoadTier int

const (
	TierNone LoadTier = iota
	TierCache
	TierRemote
	TierFallback
)

// String implements fmt.Stringer.
func (t LoadTier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierRemote:
		return "remote"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// EngineConfig holds the tunables of an Engine. Zero values select the
// package defaults.
type EngineConfig struct {
	Order    int
	CacheKey string
	CacheTTL time.Duration
}

// Engine is the fallback chain controller: it owns the model lifecycle and
// guarantees that generation always has something to walk. Load attempts, in
// strict order, a fresh cache entry, a remote fetch (cached back on
// success), and the built-in sentence list. Both the cache manager and the
// corpus source are injected at construction so tests can substitute
// in-memory stands-ins; either may be nil, which skips that tier.
type Engine struct {
	cfg    EngineConfig
	cache  *textcache.Manager
	source Source
	logger *slog.Logger

	// group collapses concurrent Load calls onto a single in-flight load so
	// no duplicate fetches or cache writes happen under concurrent access.
	group singleflight.Group

	mu    sync.Mutex
	gen   *Generator
	state EngineState
	tier  LoadTier

	availOnce sync.Once
	avail     bool
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(cfg EngineConfig, cache *textcache.Manager, source Source) *Engine {
	if cfg.Order <= 0 {
		cfg.Order = DefaultOrder
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = DefaultCacheKey
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Engine{
		cfg:    cfg,
		cache:  cache,
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Engine. By default, all logs are discarded.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Load walks the fallback chain and installs a freshly built model. It never
// fails: the static fallback tier always succeeds. Concurrent callers while
// a load is in flight all observe that single load's result.
func (e *Engine) Load(ctx context.Context) error {
	_, err, _ := e.group.Do("load", func() (interface{}, error) {
		return nil, e.load(ctx)
	})
	return err
}

// Refresh evicts the cached corpus and forces a full reload, so the next
// model comes from the remote source (or, failing that, the fallback list).
func (e *Engine) Refresh(ctx context.Context) error {
	if e.cache != nil {
		if err := e.cache.Delete(ctx, e.cfg.CacheKey); err != nil {
			e.logger.WarnContext(ctx, "Failed to evict cache entry on refresh",
				slog.String("key", e.cfg.CacheKey),
				slog.String("error", err.Error()),
			)
		}
	}
	return e.Load(ctx)
}

func (e *Engine) load(ctx context.Context) error {
	e.mu.Lock()
	e.state = StateLoading
	e.mu.Unlock()

	if model, ok := e.loadFromCache(ctx); ok {
		e.install(ctx, model, TierCache)
		return nil
	}
	if model, ok := e.loadFromRemote(ctx); ok {
		e.install(ctx, model, TierRemote)
		return nil
	}

	e.logger.WarnContext(ctx, "Falling back to built-in corpus")
	e.install(ctx, BuildModel(fallbackSentences, e.cfg.Order), TierFallback)
	return nil
}

func (e *Engine) loadFromCache(ctx context.Context) (*Model, bool) {
	if e.cache == nil {
		return nil, false
	}

	entry, err := e.cache.Get(ctx, e.cfg.CacheKey, e.cfg.CacheTTL)
	if err != nil {
		if !errors.Is(err, textcache.ErrNotFound) {
			e.logger.WarnContext(ctx, "Cache read failed",
				slog.String("key", e.cfg.CacheKey),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	model := BuildModel(CleanCorpus(entry.Text), e.cfg.Order)
	if model.Empty() {
		e.logger.WarnContext(ctx, "Cached corpus produced an empty model",
			slog.String("key", e.cfg.CacheKey),
		)
		return nil, false
	}
	return model, true
}

func (e *Engine) loadFromRemote(ctx context.Context) (*Model, bool) {
	if e.source == nil {
		return nil, false
	}

	lines, err := LoadCorpus(ctx, e.source)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrCorpusInsufficient) {
			level = slog.LevelInfo
		}
		e.logger.Log(ctx, level, "Remote corpus unusable, advancing tier",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	model := BuildModel(lines, e.cfg.Order)
	if model.Empty() {
		return nil, false
	}

	// Caching is decoupled from generation: a failed put is logged and
	// otherwise ignored.
	if e.cache != nil {
		text := strings.Join(lines, "\n")
		entry := textcache.Entry{
			Text:      text,
			Stats:     &textcache.Stats{Lines: len(lines), Chars: len(text)},
			Timestamp: time.Now(),
		}
		if err := e.cache.Put(ctx, e.cfg.CacheKey, entry); err != nil {
			e.logger.WarnContext(ctx, "Corpus caching skipped",
				slog.String("key", e.cfg.CacheKey),
				slog.String("error", err.Error()),
			)
		}
	}

	return model, true
}

// install swaps in a freshly built model. The old generator's
// recent-beginnings ring is carried over so repetition avoidance survives a
// reload.
func (e *Engine) install(ctx context.Context, model *Model, tier LoadTier) {
	gen := NewGenerator(model)
	gen.SetLogger(e.logger)

	e.mu.Lock()
	if e.gen != nil {
		gen.recent = e.gen.recent
	}
	e.gen = gen
	e.state = StateReady
	e.tier = tier
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Model ready",
		slog.String("tier", tier.String()),
		slog.Int("order", model.Order),
		slog.Int("beginnings", len(model.Beginnings)),
		slog.Int("prefixes", len(model.Ngrams)),
	)
}

func (e *Engine) ensureReady(ctx context.Context) error {
	e.mu.Lock()
	ready := e.state == StateReady
	e.mu.Unlock()
	if ready {
		return nil
	}
	return e.Load(ctx)
}

// GenerateOne produces a single bounded string, lazily loading the model on
// first use. Expected failures never escape: the worst case is the
// deterministic placeholder string. The returned error is reserved for
// context cancellation.
func (e *Engine) GenerateOne(ctx context.Context, opts ...GenerateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.ensureReady(ctx); err != nil {
		return "", err
	}

	e.mu.Lock()
	s := e.gen.GenerateOne(opts...)
	e.mu.Unlock()

	if s == "" {
		return PlaceholderText, nil
	}
	return s, nil
}

// GenerateBatch produces up to count acceptable strings; fewer may be
// returned when the attempt budget is exhausted.
func (e *Engine) GenerateBatch(ctx context.Context, count int, opts ...GenerateOption) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen.GenerateBatch(count, opts...), nil
}

// IsAvailable reports whether a usable corpus source or cache exists, i.e.
// the engine did not have to fall back to its built-in sentences. The answer
// is memoized per instance.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	e.availOnce.Do(func() {
		if err := e.ensureReady(ctx); err != nil {
			return
		}
		e.mu.Lock()
		e.avail = e.tier == TierCache || e.tier == TierRemote
		e.mu.Unlock()
	})
	return e.avail
}

// EngineStatus is a point-in-time snapshot of the engine for diagnostics.
type EngineStatus struct {
	State      string `json:"state"`
	Tier       string `json:"tier"`
	Order      int    `json:"order"`
	Beginnings int    `json:"beginnings"`
	Prefixes   int    `json:"prefixes"`
}

// Status returns the current engine snapshot.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := EngineStatus{
		State: e.state.String(),
		Tier:  e.tier.String(),
		Order: e.cfg.Order,
	}
	if e.gen != nil && e.gen.model != nil {
		status.Beginnings = len(e.gen.model.Beginnings)
		status.Prefixes = len(e.gen.model.Ngrams)
	}
	return status
}
