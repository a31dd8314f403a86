package http

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
)

// Request size limits (in bytes)
const (
	MaxBodySize    = 4 * 1024 * 1024 // whole JSON body
	MaxContentSize = 1 * 1024 * 1024 // one editor slot
	MaxEventSize   = 64 * 1024       // one injected event
)

// ErrTooLarge is returned when a request exceeds a size limit
var ErrTooLarge = errors.New("request too large")

// RenderRequest is the body of /render, /render/preview and /sandboxes
type RenderRequest struct {
	Language          renderer.Language      `json:"language" binding:"required"`
	Content           resource.EditorContent `json:"content"`
	Libraries         []resource.Descriptor  `json:"libraries,omitempty"`
	Frameworks        []resource.Descriptor  `json:"frameworks,omitempty"`
	CatalogFrameworks []string               `json:"catalog_frameworks,omitempty"`
}

// Validate checks sizes and the editor slots
func (r RenderRequest) Validate() error {
	for slot, text := range r.Content {
		if len(text) > MaxContentSize {
			return fmt.Errorf("%w: content slot %q exceeds %d bytes", ErrTooLarge, slot, MaxContentSize)
		}
	}
	return r.Content.Validate()
}

func (r RenderRequest) sandboxRequest() sandbox.Request {
	return sandbox.Request{
		Language:          r.Language,
		Content:           r.Content,
		Libraries:         resource.NewCollection(r.Libraries...),
		Frameworks:        resource.NewCollection(r.Frameworks...),
		CatalogFrameworks: r.CatalogFrameworks,
	}
}

// RenderResponse carries a rendered document and its summary
type RenderResponse struct {
	Language renderer.Language `json:"language"`
	Document string            `json:"document"`
	Summary  renderer.Summary  `json:"summary"`
}
