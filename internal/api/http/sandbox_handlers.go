package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/id"
)

// CreateSandbox renders the request and runs its scripts in a new sandbox
func (h *Handlers) CreateSandbox(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	inst, err := h.sandboxes.Create(c.Request.Context(), req.sandboxRequest())
	if err != nil {
		h.logger.Warn("Failed to create sandbox",
			zap.String("language", string(req.Language)),
			zap.Error(err),
		)
		respondError(c, err, gin.H{"language": req.Language})
		return
	}

	c.JSON(http.StatusCreated, inst.Info())
}

// ListSandboxes lists live sandboxes, oldest first
func (h *Handlers) ListSandboxes(c *gin.Context) {
	instances := h.sandboxes.List()
	infos := make([]sandbox.Info, 0, len(instances))
	for _, inst := range instances {
		infos = append(infos, inst.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"sandboxes": infos,
		"count":     len(infos),
	})
}

// GetSandbox returns one sandbox's state, result and console
func (h *Handlers) GetSandbox(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, inst.Info())
}

// GetSandboxDocument returns the document a sandbox is running
func (h *Handlers) GetSandboxDocument(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(inst.Document))
}

// DeleteSandbox tears a sandbox down
func (h *Handlers) DeleteSandbox(c *gin.Context) {
	sid := id.SandboxID(c.Param("id"))
	if err := h.sandboxes.Destroy(sid); err != nil {
		respondError(c, err, gin.H{"id": sid})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      sid,
	})
}

// DeliverEvent injects one event, the raw JSON body, into a sandbox's
// listeners without a websocket host
func (h *Handlers) DeliverEvent(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxEventSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: event exceeds %d bytes", ErrTooLarge, tooLarge.Limit)
		}
		respondError(c, err, nil)
		return
	}

	ev, err := bridge.DecodeEvent(payload)
	if err != nil {
		respondError(c, err, gin.H{"id": inst.ID})
		return
	}
	if err := inst.Host().Deliver(ev); err != nil {
		respondError(c, err, gin.H{"id": inst.ID})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"accepted": true,
		"id":       inst.ID,
	})
}

func (h *Handlers) instance(c *gin.Context) (*sandbox.Instance, bool) {
	sid := id.SandboxID(c.Param("id"))
	inst, err := h.sandboxes.Get(sid)
	if err != nil {
		respondError(c, err, gin.H{"id": sid})
		return nil, false
	}
	return inst, true
}
