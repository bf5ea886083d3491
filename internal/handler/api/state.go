package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	"Agentomics/internal/usecase"
	xhttp "Agentomics/pkg/http"
	xlogger "Agentomics/pkg/logger"
)

const (
	writeWait   = 10 * time.Second
	feedBuffer  = 16
	defaultPing = 30 * time.Second
)

// Simulation is the read side of a running orchestrator.
type Simulation interface {
	RunID() string
	Mode() usecase.Mode
	Phase() usecase.Phase
	Snapshot() *models.GlobalState
	Subscribe(buffer int) (<-chan *models.RoundCommitted, func())
}

// StateHandler serves the live state of one run and, when a quarter store is
// configured, exported runs.
type StateHandler struct {
	logger       *xlogger.Logger
	sim          Simulation
	store        drepo.QuarterStore
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewStateHandler(logger *xlogger.Logger, sim Simulation, store drepo.QuarterStore, pingInterval time.Duration) *StateHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = defaultPing
	}
	return &StateHandler{
		logger: logger,
		sim:    sim,
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
	}
}

func (h *StateHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/state", h.State)
	g.GET("/state/report", h.Report)
	g.GET("/state/table", h.Table)
	g.GET("/runs/:id/table", h.RunTable)
	g.GET("/rounds/ws", h.Rounds)
}

func (h *StateHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"status": "ok",
		"run_id": h.sim.RunID(),
		"phase":  h.sim.Phase().String(),
	})
}

func (h *StateHandler) State(c echo.Context) error {
	snap := h.sim.Snapshot()
	t, err := snap.ToTable()
	if err != nil {
		h.logger.Error("state table error", xlogger.Error(err))
		return xhttp.InternalError("state is inconsistent").WithError(err)
	}
	res := models.StateSummary{
		RunID:     h.sim.RunID(),
		Mode:      string(h.sim.Mode()),
		Phase:     h.sim.Phase().String(),
		Quarters:  t.Len(),
		Remaining: snap.RemainingRounds(),
	}
	if t.Len() > 0 {
		res.Latest, _ = t.Record(-1)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StateHandler) Report(c echo.Context) error {
	return c.String(http.StatusOK, h.sim.Snapshot().RenderReport())
}

func (h *StateHandler) Table(c echo.Context) error {
	req := &models.StateTableRequest{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		return err
	}
	t, err := h.sim.Snapshot().ToTable()
	if err != nil {
		h.logger.Error("state table error", xlogger.Error(err))
		return xhttp.InternalError("state is inconsistent").WithError(err)
	}
	return h.writeTable(c, t.Tail(req.Last), req.Format)
}

func (h *StateHandler) RunTable(c echo.Context) error {
	req := &models.RunTableRequest{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		return err
	}
	if h.store == nil {
		return xhttp.UnavailableError("no quarter store configured")
	}
	t, err := h.store.Quarters(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, drepo.ErrRunNotFound) {
			return xhttp.NotFoundErrorf("run %s not found", req.ID)
		}
		h.logger.Error("quarter store error", xlogger.String("run_id", req.ID), xlogger.Error(err))
		return xhttp.InternalError("quarter store failed").WithError(err)
	}
	return h.writeTable(c, t.Tail(req.Last), req.Format)
}

func (h *StateHandler) writeTable(c echo.Context, t *models.Table, format string) error {
	if format != "csv" {
		return xhttp.SuccessResponse(c, t)
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	return t.WriteCSV(res)
}

// Rounds streams every committed round as a JSON text frame until the client
// goes away.
func (h *StateHandler) Rounds(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	feed, unsubscribe := h.sim.Subscribe(feedBuffer)
	defer unsubscribe()

	// reads only to notice the peer closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return nil
		case ev, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(writeWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
