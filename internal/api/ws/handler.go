package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/id"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Handler attaches websocket hosts to sandbox bridges
type Handler struct {
	sandboxes *sandbox.Manager
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(sandboxes *sandbox.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sandboxes: sandboxes,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "ws")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // devices and editors connect from anywhere
			},
		},
	}
}

// WithOriginCheck restricts which browser origins may attach hosts
func (h *Handler) WithOriginCheck(check func(r *http.Request) bool) *Handler {
	if check != nil {
		h.upgrader.CheckOrigin = check
	}
	return h
}

// HandleConnection upgrades the request and serves one host until either
// side closes. Outbound frames are command messages; inbound frames are
// events delivered to the sandbox's listeners.
func (h *Handler) HandleConnection(c *gin.Context) {
	sid := id.SandboxID(c.Param("id"))
	inst, err := h.sandboxes.Get(sid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "id": sid})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("sandbox_id", string(sid)), zap.Error(err))
		return
	}

	hostID := id.NewHostID()
	logger := h.logger.With(
		zap.String("sandbox_id", string(sid)),
		zap.String("host_id", string(hostID)),
	)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	release := inst.Hold()
	defer release()

	logger.Info("Host attached")
	newHostConn(conn, h.metrics, logger).serve(inst.Host())
	logger.Info("Host detached")
}

// hostConn is one websocket attached to a bridge. Only the write pump
// writes to conn.
type hostConn struct {
	conn    *websocket.Conn
	metrics *monitoring.Metrics
	logger  *zap.Logger

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newHostConn(conn *websocket.Conn, metrics *monitoring.Metrics, logger *zap.Logger) *hostConn {
	return &hostConn{
		conn:    conn,
		metrics: metrics,
		logger:  logger,
		out:     make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (hc *hostConn) serve(host bridge.Host) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hc.writePump()
	}()

	unsubscribe := host.Subscribe(hc.enqueue)
	hc.readPump(host)

	unsubscribe()
	hc.stop()
	wg.Wait()
	hc.conn.Close()
}

func (hc *hostConn) stop() {
	hc.closeOnce.Do(func() { close(hc.done) })
}

// enqueue runs on the bridge dispatcher and must not block it
func (hc *hostConn) enqueue(msg bridge.CommandMessage) {
	payload, err := bridge.EncodeCommand(msg)
	if err != nil {
		hc.logger.Warn("Failed to encode command", zap.String("command", msg.Command), zap.Error(err))
		return
	}

	select {
	case <-hc.done:
		hc.drop(msg, "host disconnected")
	case hc.out <- payload:
	default:
		hc.drop(msg, "send buffer full")
	}
}

func (hc *hostConn) drop(msg bridge.CommandMessage, reason string) {
	hc.logger.Warn("Dropping command", zap.String("command", msg.Command), zap.String("reason", reason))
	if hc.metrics != nil {
		hc.metrics.RecordDroppedCommand("websocket")
	}
}

func (hc *hostConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-hc.out:
			hc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := hc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				hc.logger.Debug("WebSocket write failed", zap.Error(err))
				hc.fail()
				return
			}
			if hc.metrics != nil {
				hc.metrics.RecordWSMessage("out")
			}
		case <-ticker.C:
			hc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := hc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hc.fail()
				return
			}
		case <-hc.done:
			hc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// fail unblocks the read pump after a write error
func (hc *hostConn) fail() {
	hc.stop()
	hc.conn.Close()
}

func (hc *hostConn) readPump(host bridge.Host) {
	hc.conn.SetReadLimit(maxMessageSize)
	hc.conn.SetReadDeadline(time.Now().Add(pongWait))
	hc.conn.SetPongHandler(func(string) error {
		return hc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := hc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				hc.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if hc.metrics != nil {
			hc.metrics.RecordWSMessage("in")
		}

		ev, err := bridge.DecodeEvent(data)
		if err != nil {
			hc.logger.Warn("Ignoring malformed event", zap.Int("bytes", len(data)))
			continue
		}
		if err := host.Deliver(ev); err != nil {
			if errors.Is(err, bridge.ErrClosed) {
				hc.logger.Info("Sandbox closed, disconnecting host")
				return
			}
			hc.logger.Warn("Failed to deliver event", zap.Error(err))
		}
	}
}
