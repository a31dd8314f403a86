package renderer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
)

var (
	// ErrNoRenderer is returned when no renderer is registered for a language
	ErrNoRenderer = errors.New("no renderer registered")
	// ErrAlreadyRegistered is returned when a language is registered twice
	ErrAlreadyRegistered = errors.New("renderer already registered")
)

// unregisteredLabel is the metrics language for every render of an unknown
// language, so callers cannot grow the label set
const unregisteredLabel = "unregistered"

// Input bundles everything a renderer consumes
type Input struct {
	Content    resource.EditorContent
	Libraries  resource.Collection
	Frameworks resource.Collection
}

// Renderer turns an Input into a Document using the shared Assembler
type Renderer interface {
	Render(in Input, a *Assembler) Document
}

// RendererFunc adapts a plain function to Renderer
type RendererFunc func(in Input, a *Assembler) Document

// Render calls f(in, a)
func (f RendererFunc) Render(in Input, a *Assembler) Document {
	return f(in, a)
}

// Registry maps languages to renderers
type Registry struct {
	mu        sync.RWMutex
	renderers map[Language]Renderer
	assembler *Assembler
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewRegistry creates an empty registry sharing one Assembler
func NewRegistry(assembler *Assembler, logger *zap.Logger) *Registry {
	if assembler == nil {
		assembler = NewAssembler("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		renderers: make(map[Language]Renderer),
		assembler: assembler,
		logger:    logger,
	}
}

// WithMetrics attaches a metrics collector
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// Register binds a renderer to a language. Registrations are append-only.
func (r *Registry) Register(lang Language, renderer Renderer) error {
	if lang == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if renderer == nil {
		return fmt.Errorf("renderer for %s cannot be nil", lang)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.renderers[lang]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, lang)
	}
	r.renderers[lang] = renderer
	return nil
}

// Render produces the document for lang. An unknown language is a
// configuration error: it is logged and ErrNoRenderer is returned.
func (r *Registry) Render(lang Language, in Input) (Document, error) {
	start := time.Now()

	r.mu.RLock()
	renderer, ok := r.renderers[lang]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error("No renderer registered for language",
			zap.String("language", string(lang)),
			zap.Strings("registered", languageStrings(r.Languages())),
		)
		r.record(unregisteredLabel, "unregistered", time.Since(start))
		return "", fmt.Errorf("%w: %s", ErrNoRenderer, lang)
	}

	doc := renderer.Render(in, r.assembler)
	r.record(string(lang), "ok", time.Since(start))
	return doc, nil
}

// Has reports whether lang has a renderer
func (r *Registry) Has(lang Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[lang]
	return ok
}

// Languages returns the registered languages, sorted
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	langs := make([]Language, 0, len(r.renderers))
	for lang := range r.renderers {
		langs = append(langs, lang)
	}
	r.mu.RUnlock()

	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Assembler returns the shared assembler
func (r *Registry) Assembler() *Assembler {
	return r.assembler
}

func (r *Registry) record(language, status string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordRender(language, status, d)
	}
}

func languageStrings(langs []Language) []string {
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = string(l)
	}
	return out
}
