package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
)

// ClassifierSettings tunes chunk embedding and the prototype scoring pipeline.
// Zero or negative values fall back to the defaults.
type ClassifierSettings struct {
	Timeout             time.Duration
	EmbedConcurrency    int
	Temperature         float64
	MinChunkLength      int
	RisingEdgeThreshold float64
	CoveringThreshold   float64
	DefaultOptions      domain.ClassifyOptions
}

// DefaultClassifierSettings returns the settings used when nothing is configured.
func DefaultClassifierSettings() ClassifierSettings {
	return ClassifierSettings{
		Timeout:             30 * time.Second,
		EmbedConcurrency:    4,
		Temperature:         DefaultTemperature,
		MinChunkLength:      DefaultMinChunkLength,
		RisingEdgeThreshold: DefaultRisingEdgeThreshold,
		CoveringThreshold:   DefaultCoveringThreshold,
		DefaultOptions: domain.ClassifyOptions{
			MaxChunkSize: domain.DefaultMaxChunkSize,
			MinChunkSize: domain.DefaultMinChunkSize,
		},
	}
}

func (s ClassifierSettings) normalize() ClassifierSettings {
	out := s
	def := DefaultClassifierSettings()
	if out.Timeout < 0 {
		out.Timeout = 0
	}
	if out.EmbedConcurrency <= 0 {
		out.EmbedConcurrency = 1
	}
	if out.Temperature <= 0 {
		out.Temperature = def.Temperature
	}
	if out.MinChunkLength < 0 {
		out.MinChunkLength = 0
	}
	if out.RisingEdgeThreshold < 0 {
		out.RisingEdgeThreshold = def.RisingEdgeThreshold
	}
	if out.CoveringThreshold <= 0 {
		out.CoveringThreshold = def.CoveringThreshold
	}
	out.DefaultOptions = out.DefaultOptions.Normalize()
	return out
}

// prototypeCache is the embedded form of one category set version.
type prototypeCache struct {
	active     domain.ActiveCategories
	prototypes [domain.CategoryCount][]float64
	dimension  int
}

// ClassifyUseCase classifies text against the active category set and owns
// its lifecycle: activation at startup, reconfiguration and refresh from the
// shared category store.
type ClassifyUseCase struct {
	embedder   ports.Embedder
	chunker    ports.Chunker
	propagator *PropagateUseCase
	store      ports.CategoryStore
	observer   ports.ClassificationObserver
	settings   ClassifierSettings
	now        func() time.Time

	// mu guards cache. Classifications hold the read lock for their whole
	// run so a swap never happens under an in-flight request.
	mu    sync.RWMutex
	cache *prototypeCache

	// configMu serialises Activate, Configure and Refresh within a process.
	// Across processes the store's unique version decides.
	configMu sync.Mutex
}

// NewClassifyUseCase wires the classifier. store and observer may be nil; no
// category set is active until Activate or Configure succeeds.
func NewClassifyUseCase(
	embedder ports.Embedder,
	chunker ports.Chunker,
	propagator *PropagateUseCase,
	store ports.CategoryStore,
	observer ports.ClassificationObserver,
	settings ClassifierSettings,
) *ClassifyUseCase {
	return &ClassifyUseCase{
		embedder:   embedder,
		chunker:    chunker,
		propagator: propagator,
		store:      store,
		observer:   observer,
		settings:   settings.normalize(),
		now:        time.Now,
	}
}

// Activate embeds and installs a category set with a known version without
// persisting it. Used at startup to restore the latest stored set.
func (uc *ClassifyUseCase) Activate(ctx context.Context, active domain.ActiveCategories) error {
	uc.configMu.Lock()
	defer uc.configMu.Unlock()

	cache, err := uc.activateLocked(ctx, active)
	if err != nil {
		return err
	}
	slog.Info("categories_activated", "version", active.Version, "dimension", cache.dimension)
	return nil
}

// Refresh installs the newest stored category set when another process saved
// one after this instance last activated. It reports whether a newer set was
// installed. Without a store it is a no-op.
func (uc *ClassifyUseCase) Refresh(ctx context.Context) (bool, error) {
	if uc.store == nil {
		return false, nil
	}
	uc.configMu.Lock()
	defer uc.configMu.Unlock()

	latest, err := uc.store.LatestCategorySet(ctx)
	if err != nil {
		return false, fmt.Errorf("load category set: %w", err)
	}
	current := uc.Categories().Version
	if latest == nil || latest.Version <= current {
		return false, nil
	}
	if _, err := uc.activateLocked(ctx, *latest); err != nil {
		return false, err
	}
	slog.Info("categories_refreshed", "from_version", current, "version", latest.Version)
	return true, nil
}

// activateLocked requires configMu.
func (uc *ClassifyUseCase) activateLocked(ctx context.Context, active domain.ActiveCategories) (*prototypeCache, error) {
	if err := active.Categories.Validate(); err != nil {
		return nil, err
	}
	cache, err := uc.buildCache(ctx, active)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	uc.cache = cache
	uc.mu.Unlock()
	return cache, nil
}

// Configure validates, embeds and persists a new category set, then swaps it
// in. On any failure the previous set stays active.
func (uc *ClassifyUseCase) Configure(ctx context.Context, cfg domain.CategoryConfig) (*domain.ActiveCategories, error) {
	uc.configMu.Lock()
	defer uc.configMu.Unlock()

	active, err := uc.configure(ctx, cfg)
	if uc.observer != nil {
		uc.observer.ObserveReconfiguration(err)
	}
	if err != nil {
		slog.Warn("categories_reconfigure_rejected", "error", err)
		return nil, err
	}
	slog.Info("categories_reconfigured", "version", active.Version, "labels", active.Categories.Labels())
	return active, nil
}

func (uc *ClassifyUseCase) configure(ctx context.Context, cfg domain.CategoryConfig) (*domain.ActiveCategories, error) {
	set, err := domain.NewCategorySet(cfg.Labels, cfg.PrototypeDescriptions)
	if err != nil {
		return nil, err
	}

	version := uc.Categories().Version
	if uc.store != nil {
		latest, err := uc.store.LatestCategorySet(ctx)
		if err != nil {
			return nil, fmt.Errorf("load category set: %w", err)
		}
		version = newestVersion(version, latest)
	}

	active := domain.ActiveCategories{
		Version:    version + 1,
		Categories: set,
		UpdatedAt:  uc.now().UTC(),
	}
	cache, err := uc.buildCache(ctx, active)
	if err != nil {
		return nil, err
	}

	if uc.store != nil {
		if active, err = uc.persist(ctx, active); err != nil {
			return nil, err
		}
		cache.active = active
	}

	uc.mu.Lock()
	uc.cache = cache
	uc.mu.Unlock()
	return &active, nil
}

const maxVersionAttempts = 3

// persist saves active under the next free version. When another writer
// already stored the same categories it adopts that row instead of adding a
// duplicate version.
func (uc *ClassifyUseCase) persist(ctx context.Context, active domain.ActiveCategories) (domain.ActiveCategories, error) {
	for attempt := 1; ; attempt++ {
		err := uc.store.SaveCategorySet(ctx, active)
		if err == nil {
			return active, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxVersionAttempts {
			return domain.ActiveCategories{}, fmt.Errorf("persist category set: %w", err)
		}

		latest, err := uc.store.LatestCategorySet(ctx)
		if err != nil {
			return domain.ActiveCategories{}, fmt.Errorf("load category set: %w", err)
		}
		if latest != nil && latest.Categories == active.Categories {
			return *latest, nil
		}
		slog.Warn("category_version_conflict", "version", active.Version, "attempt", attempt)
		active.Version = newestVersion(active.Version, latest) + 1
	}
}

func newestVersion(local int, stored *domain.ActiveCategories) int {
	if stored != nil && stored.Version > local {
		return stored.Version
	}
	return local
}

// Categories returns the active set, or a zero value before activation.
func (uc *ClassifyUseCase) Categories() domain.ActiveCategories {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.cache == nil {
		return domain.ActiveCategories{}
	}
	return uc.cache.active
}

func (uc *ClassifyUseCase) buildCache(ctx context.Context, active domain.ActiveCategories) (*prototypeCache, error) {
	vectors := make([][]float32, domain.CategoryCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.settings.EmbedConcurrency)
	for i, category := range active.Categories {
		g.Go(func() error {
			vector, err := uc.embedder.EmbedQuery(gctx, category.Prototype)
			if err != nil {
				return &domain.EmbedderError{Target: domain.EmbedTargetPrototype, Index: i + 1, Err: err}
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrTimeout, "embed prototypes", err)
		}
		return nil, fmt.Errorf("embed prototypes: %w", err)
	}

	cache := &prototypeCache{active: active, dimension: len(vectors[0])}
	for i, vector := range vectors {
		if len(vector) == 0 || len(vector) != cache.dimension {
			return nil, &domain.EmbedderError{
				Target: domain.EmbedTargetPrototype,
				Index:  i + 1,
				Err:    fmt.Errorf("embedding dimension %d does not match %d", len(vector), cache.dimension),
			}
		}
		cache.prototypes[i] = toFloat64(vector)
	}
	return cache, nil
}

type indexedChunk struct {
	index int
	text  string
}

// Classify chunks req.Text, scores every chunk against the category
// prototypes and aggregates the scores into a probability vector and ranking.
// The result carries the version of the category set it was scored against.
func (uc *ClassifyUseCase) Classify(ctx context.Context, req domain.ClassifyRequest) (*domain.ClassificationResult, error) {
	start := time.Now()
	result, err := uc.classify(ctx, req)
	if uc.observer != nil {
		uc.observer.ObserveClassification(result, time.Since(start), err)
	}
	return result, err
}

func (uc *ClassifyUseCase) classify(ctx context.Context, req domain.ClassifyRequest) (*domain.ClassificationResult, error) {
	if uc.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.settings.Timeout)
		defer cancel()
	}

	uc.mu.RLock()
	defer uc.mu.RUnlock()
	cache := uc.cache
	if cache == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "classify", errors.New("no active category set"))
	}

	opts := uc.resolveOptions(req.Options)
	chunks := uc.chunker.Split(req.Text, opts.MaxChunkSize, opts.MinChunkSize)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "classify", errors.New("text is empty after trimming"))
	}

	valid := make([]indexedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(chunk)) < uc.settings.MinChunkLength {
			continue
		}
		valid = append(valid, indexedChunk{index: i, text: chunk})
	}
	if len(valid) == 0 {
		return nil, domain.WrapError(
			domain.ErrEmptyInput,
			"classify",
			fmt.Errorf("all %d chunks are shorter than %d characters", len(chunks), uc.settings.MinChunkLength),
		)
	}

	vectors, failures := uc.embedChunks(ctx, valid, cache.dimension)
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrTimeout, "classify", fmt.Errorf("embedding %d chunks: %w", len(valid), err))
		}
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("classify: every chunk failed to embed: %w", errors.Join(failures...))
	}

	warnings := make([]string, 0, len(failures))
	for _, failure := range failures {
		slog.Warn("classify_chunk_skipped", "error", failure)
		warnings = append(warnings, failure.Error())
	}

	mean := meanVector(vectors)
	var similarities [domain.CategoryCount]float64
	for i := range domain.CategoryCount {
		similarities[i] = cosineSimilarity(mean, cache.prototypes[i])
	}
	vector := rectifiedSoftmax(similarities, uc.settings.Temperature)
	dominant := vector.Argmax()
	categories := cache.active.Categories

	result := &domain.ClassificationResult{
		DominantIndex:   dominant + 1,
		DominantLabel:   categories[dominant].Label,
		Vector:          vector,
		Confidence:      vector[dominant],
		CoherenceFlag:   CoherenceFlag(vector, uc.settings.RisingEdgeThreshold),
		CoveringCount:   CoveringCount(vector, uc.settings.CoveringThreshold),
		ChunksProcessed: len(vectors),
		ChunksSkipped:   len(chunks) - len(vectors),
		Ranking:         rankCategories(categories, vector, similarities),
		ConfigVersion:   cache.active.Version,
	}
	if len(warnings) > 0 {
		result.Warnings = warnings
	}

	if uc.propagator != nil {
		chain := make([]int, 0, domain.CategoryCount-1)
		for _, ranked := range result.Ranking[1:] {
			chain = append(chain, ranked.Index)
		}
		narrative, err := uc.propagator.Narrative(result.DominantIndex, chain)
		if err != nil {
			return nil, fmt.Errorf("classify narrative: %w", err)
		}
		result.Narrative = narrative
	}

	return result, nil
}

func (uc *ClassifyUseCase) resolveOptions(opts domain.ClassifyOptions) domain.ClassifyOptions {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = uc.settings.DefaultOptions.MaxChunkSize
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = uc.settings.DefaultOptions.MinChunkSize
	}
	return opts.Normalize()
}

// embedChunks embeds every chunk with bounded concurrency. Failed chunks are
// returned as failures; successful vectors keep chunk order so the mean is
// identical to a sequential run.
func (uc *ClassifyUseCase) embedChunks(ctx context.Context, chunks []indexedChunk, dimension int) ([][]float32, []error) {
	results := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var g errgroup.Group
	g.SetLimit(uc.settings.EmbedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = &domain.EmbedderError{Target: domain.EmbedTargetChunk, Index: chunk.index, Err: ctx.Err()}
				return nil
			}
			vector, err := uc.embedder.EmbedQuery(ctx, chunk.text)
			if err == nil && len(vector) != dimension {
				err = fmt.Errorf("embedding dimension %d does not match prototypes (%d)", len(vector), dimension)
			}
			if err != nil {
				errs[i] = &domain.EmbedderError{Target: domain.EmbedTargetChunk, Index: chunk.index, Err: err}
				return nil
			}
			results[i] = vector
			return nil
		})
	}
	_ = g.Wait()

	vectors := make([][]float32, 0, len(chunks))
	var failures []error
	for i := range chunks {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			continue
		}
		vectors = append(vectors, results[i])
	}
	return vectors, failures
}

func rankCategories(categories domain.CategorySet, vector domain.ProbabilityVector, similarities [domain.CategoryCount]float64) []domain.RankedCategory {
	ranked := make([]domain.RankedCategory, 0, domain.CategoryCount)
	for i, category := range categories {
		ranked = append(ranked, domain.RankedCategory{
			Index:       i + 1,
			Label:       category.Label,
			Probability: vector[i],
			Similarity:  similarities[i],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})
	return ranked
}
