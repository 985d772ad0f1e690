package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/metrics"
)

// initCall is one in-flight model load shared by every caller that arrives
// while it runs.
type initCall struct {
	done  chan struct{}
	model Model
	err   error
}

// Provider turns text into vectors through a lazily loaded Model.
// It is safe for concurrent use and is meant to be shared process-wide.
type Provider struct {
	cfg    Config
	loader Loader
	logger *zap.Logger
	memory *Cache
	disk   *DiskCache

	mu       sync.Mutex
	model    Model
	inflight *initCall
	gen      uint64 // bumped by Dispose; a load started under an older gen is discarded

	// serializes inference for models that are not ConcurrentSafe
	inferMu sync.Mutex
}

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the provider logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCache sets the in-memory vector cache
func WithCache(c *Cache) Option {
	return func(p *Provider) { p.memory = c }
}

// WithDiskCache sets the persistent vector cache
func WithDiskCache(d *DiskCache) Option {
	return func(p *Provider) { p.disk = d }
}

// NewProvider creates a provider that loads its model with loader on first use
func NewProvider(cfg Config, loader Loader, opts ...Option) *Provider {
	cfg.applyDefaults()
	p := &Provider{
		cfg:    cfg,
		loader: loader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize loads the model if it is not loaded yet. Concurrent callers
// share a single load. The load is bounded by Config.InitTimeout and is not
// cancelled by ctx; ctx only stops this caller from waiting.
func (p *Provider) Initialize(ctx context.Context) error {
	_, err := p.ensureModel(ctx)
	return err
}

func (p *Provider) ensureModel(ctx context.Context) (Model, error) {
	p.mu.Lock()
	if p.model != nil {
		m := p.model
		p.mu.Unlock()
		return m, nil
	}
	call := p.inflight
	if call == nil {
		call = &initCall{done: make(chan struct{})}
		p.inflight = call
		go p.load(call, p.gen)
	}
	p.mu.Unlock()

	select {
	case <-call.done:
		return call.model, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type loadResult struct {
	model Model
	err   error
}

func (p *Provider) load(call *initCall, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.InitTimeout)
	defer cancel()

	start := time.Now()
	p.logger.Info("loading embedding model",
		zap.String("provider", p.cfg.Provider),
		zap.String("model", p.cfg.ModelName))

	results := make(chan loadResult, 1)
	go func() {
		m, err := p.loader(ctx, p.cfg)
		results <- loadResult{model: m, err: err}
	}()

	var m Model
	var err error
	select {
	case r := <-results:
		m, err = r.model, r.err
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w after %s: %v", ErrInitializationTimeout, p.cfg.InitTimeout, err)
			} else {
				err = fmt.Errorf("%w: load %s: %w", ErrModel, p.cfg.ModelName, err)
			}
		}
	case <-ctx.Done():
		err = fmt.Errorf("%w after %s", ErrInitializationTimeout, p.cfg.InitTimeout)
		go func() {
			if r := <-results; r.model != nil {
				_ = r.model.Close()
			}
		}()
	}

	p.mu.Lock()
	if p.inflight == call {
		p.inflight = nil
	}
	if err == nil {
		if p.gen == gen {
			p.model = m
		} else {
			_ = m.Close()
			m, err = nil, ErrDisposed
		}
	}
	p.mu.Unlock()

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
		p.logger.Error("embedding model load failed", zap.Error(err))
	} else {
		p.logger.Info("embedding model ready",
			zap.String("model", m.Name()),
			zap.Int("dimension", m.Dimension()),
			zap.Duration("elapsed", time.Since(start)))
	}
	metrics.ModelLoadsTotal.WithLabelValues(p.cfg.ModelName, status).Inc()

	call.model, call.err = m, err
	close(call.done)
}

// Embed returns the vector for text, loading the model first if needed.
// Vectors are returned as produced by the model; no re-normalization is applied.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order. It fails fast: the first error aborts the
// batch and names the index of the failing text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	m, err := p.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		hashes[i] = ComputeHash(m.Name(), text)
		if vec, ok := p.cached(hashes[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	for startIdx := 0; startIdx < len(missing); startIdx += p.cfg.BatchSize {
		end := min(startIdx+p.cfg.BatchSize, len(missing))
		idx := missing[startIdx:end]

		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vecs, err := p.infer(ctx, m, batch)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", idx[0], err)
		}
		for j, i := range idx {
			out[i] = vecs[j]
			p.store(hashes[i], vecs[j])
		}
	}

	return out, nil
}

func (p *Provider) infer(ctx context.Context, m Model, batch []string) ([][]float32, error) {
	if !m.ConcurrentSafe() {
		p.inferMu.Lock()
		defer p.inferMu.Unlock()
	}

	start := time.Now()
	vecs, err := retryWithBackoff(ctx, p.cfg.Retry, func() ([][]float32, error) {
		return m.Embed(ctx, batch)
	})
	if err == nil && len(vecs) != len(batch) {
		err = fmt.Errorf("model returned %d vectors for %d texts", len(vecs), len(batch))
	}
	if err == nil {
		for _, v := range vecs {
			if len(v) != m.Dimension() {
				err = fmt.Errorf("model returned %d-dimensional vector, want %d", len(v), m.Dimension())
				break
			}
		}
	}

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(m.Name(), metrics.StatusError).Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(m.Name(), metrics.StatusOK).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(m.Name()).Observe(time.Since(start).Seconds())
	return vecs, nil
}

func (p *Provider) cached(hash string) ([]float32, bool) {
	if p.memory != nil {
		if vec, ok := p.memory.Get(hash); ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("memory", "hit").Inc()
			return vec, true
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("memory", "miss").Inc()
	}
	if p.disk != nil {
		vec, ok, err := p.disk.Get(hash)
		if err != nil {
			p.logger.Warn("vector cache read failed", zap.Error(err))
			return nil, false
		}
		if ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("disk", "hit").Inc()
			if p.memory != nil {
				p.memory.Set(hash, vec)
			}
			return vec, true
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("disk", "miss").Inc()
	}
	return nil, false
}

func (p *Provider) store(hash string, vec []float32) {
	if p.memory != nil {
		p.memory.Set(hash, vec)
	}
	if p.disk != nil {
		if err := p.disk.Set(hash, vec); err != nil {
			p.logger.Warn("vector cache write failed", zap.Error(err))
		}
	}
}

// Dimension returns the loaded model's vector length, or 0 before initialization
func (p *Provider) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return 0
	}
	return p.model.Dimension()
}

// ModelName returns the loaded model's name, or the configured name before initialization
func (p *Provider) ModelName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return p.cfg.ModelName
	}
	return p.model.Name()
}

// Ready reports whether the model is loaded
func (p *Provider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model != nil
}

// Dispose releases the model. Any load still in flight is abandoned and its
// waiters receive ErrDisposed. The next Embed loads the model again.
// Dispose is idempotent.
func (p *Provider) Dispose() error {
	p.mu.Lock()
	p.gen++
	p.inflight = nil
	m := p.model
	p.model = nil
	p.mu.Unlock()

	if m == nil {
		return nil
	}
	if err := m.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	return nil
}

// Close disposes the model and closes the persistent cache
func (p *Provider) Close() error {
	err := p.Dispose()
	if p.disk != nil {
		if cerr := p.disk.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close vector cache: %w", cerr)
		}
	}
	return err
}
