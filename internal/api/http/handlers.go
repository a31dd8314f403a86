package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry  *renderer.Registry
	sandboxes *sandbox.Manager
	logger    *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(registry *renderer.Registry, sandboxes *sandbox.Manager, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:  registry,
		sandboxes: sandboxes,
		logger:    logger,
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/renderers", h.ListRenderers)
	r.POST("/render", h.Render)
	r.POST("/render/preview", h.Preview)

	r.POST("/sandboxes", h.CreateSandbox)
	r.GET("/sandboxes", h.ListSandboxes)
	r.GET("/sandboxes/:id", h.GetSandbox)
	r.GET("/sandboxes/:id/document", h.GetSandboxDocument)
	r.DELETE("/sandboxes/:id", h.DeleteSandbox)
	r.POST("/sandboxes/:id/events", h.DeliverEvent)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Runner Service (Go)",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"renderers":  len(h.registry.Languages()),
		"sandboxes":  h.sandboxes.Len(),
		"frameworks": h.frameworkNames(),
	})
}

// ListRenderers lists the registered languages and catalog frameworks
func (h *Handlers) ListRenderers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"languages":  h.registry.Languages(),
		"frameworks": h.frameworkNames(),
	})
}

// Render renders a document. ?format=html returns the document itself.
func (h *Handlers) Render(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	doc, err := h.render(req)
	if err != nil {
		respondError(c, err, gin.H{"language": req.Language})
		return
	}

	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
		return
	}

	summary, err := renderer.Inspect(doc)
	if err != nil {
		h.logger.Warn("Failed to inspect document", zap.String("language", string(req.Language)), zap.Error(err))
	}

	c.JSON(http.StatusOK, RenderResponse{
		Language: req.Language,
		Document: doc.String(),
		Summary:  summary,
	})
}

// Preview renders a document and returns its sanitized, script-free markup
func (h *Handlers) Preview(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	doc, err := h.render(req)
	if err != nil {
		respondError(c, err, gin.H{"language": req.Language})
		return
	}

	preview := renderer.Preview(doc)
	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(preview))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"language": req.Language,
		"preview":  preview,
	})
}

func (h *Handlers) render(req RenderRequest) (renderer.Document, error) {
	sr := req.sandboxRequest()
	if err := sr.Frameworks.Validate(); err != nil {
		return "", err
	}
	if err := sr.Libraries.Validate(); err != nil {
		return "", err
	}

	frameworks, libraries, err := resource.Merge(h.sandboxes.Catalog(), sr.CatalogFrameworks, sr.Frameworks, sr.Libraries)
	if err != nil {
		return "", err
	}

	return h.registry.Render(req.Language, renderer.Input{
		Content:    sr.Content,
		Libraries:  libraries,
		Frameworks: frameworks,
	})
}

// bind decodes and validates a RenderRequest, writing the error response
// itself when it fails
func (h *Handlers) bind(c *gin.Context) (RenderRequest, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)

	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, tooLarge.Limit), nil)
			return req, false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return req, false
	}
	if err := req.Validate(); err != nil {
		respondError(c, err, nil)
		return req, false
	}
	return req, true
}

func (h *Handlers) frameworkNames() []string {
	if catalog := h.sandboxes.Catalog(); catalog != nil {
		return catalog.Names()
	}
	return []string{}
}
