package pluginui

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/reelhaven/reelhaven/internal/events"
)

// APIResponse provides a standardized response format for the host API
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIHandlers exposes the plugin UI core to the rendering layer over a
// local HTTP surface
type APIHandlers struct {
	module     *Module
	logger     hclog.Logger
	wsUpgrader websocket.Upgrader
}

// NewAPIHandlers creates the host API handlers
func NewAPIHandlers(module *Module, logger hclog.Logger) *APIHandlers {
	return &APIHandlers{
		module: module,
		logger: logger.Named("pluginui-api"),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The host API binds to loopback; the renderer is local.
				return true
			},
		},
	}
}

// RegisterRoutes registers the host API routes
func (h *APIHandlers) RegisterRoutes(router *gin.Engine) {
	ui := router.Group("/api/v1/ui")
	{
		ui.GET("/plugins", h.handleListPlugins)
		ui.POST("/plugins/:id/reload", h.handleReloadPlugin)
		ui.GET("/injection-points/:point", h.handleQueryInjectionPoint)
		ui.GET("/dialogs/:id", h.handleGetDialog)
		ui.POST("/dispatch", h.handleDispatch)
		ui.GET("/events", h.handleEventStream)
	}
}

// handleEventStream upgrades to a WebSocket and streams every bus event to
// the renderer: notifications, dialog show/close, progress updates, results,
// and refresh requests all travel over this channel.
func (h *APIHandlers) handleEventStream(c *gin.Context) {
	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade event stream connection", "error", err)
		return
	}
	defer conn.Close()

	// Bus handlers run on the publisher's goroutine and must not block, so
	// events are queued for the writer; a lagging renderer loses events
	// rather than stalling a dispatch.
	queue := make(chan events.Event, 64)
	subscriptionID := h.module.Events().SubscribeAll(func(event events.Event) {
		select {
		case queue <- event:
		default:
			h.logger.Warn("event stream consumer lagging, dropping event", "type", event.Type)
		}
	})
	defer h.module.Events().Unsubscribe(subscriptionID)

	h.logger.Debug("event stream client connected", "remote", conn.RemoteAddr().String())

	// The read side only notices the client going away; close frames and
	// read errors end the stream.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-queue:
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("event stream write failed, closing", "error", err)
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *APIHandlers) respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{
		Success:   status < 400,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	})
}

func (h *APIHandlers) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	})
}

func (h *APIHandlers) handleListPlugins(c *gin.Context) {
	manifests := h.module.Registry().ListManifests()
	summaries := make([]gin.H, 0, len(manifests))
	for _, manifest := range manifests {
		summaries = append(summaries, gin.H{
			"id":          manifest.ID,
			"name":        manifest.Name,
			"version":     manifest.Version,
			"description": manifest.Description,
			"buttons":     len(manifest.Buttons),
			"dialogs":     len(manifest.Dialogs),
		})
	}
	h.respond(c, http.StatusOK, gin.H{"plugins": summaries})
}

func (h *APIHandlers) handleReloadPlugin(c *gin.Context) {
	pluginID := c.Param("id")
	if err := h.module.Reload(pluginID); err != nil {
		h.logger.Warn("plugin reload failed", "plugin", pluginID, "error", err)
		h.respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respond(c, http.StatusOK, gin.H{"plugin_id": pluginID, "reloaded": true})
}

func (h *APIHandlers) handleQueryInjectionPoint(c *gin.Context) {
	point := c.Param("point")

	var elements []RegisteredElement
	if c.DefaultQuery("filtered", "true") == "true" {
		elements = h.module.QueryInstalled(c.Request.Context(), point)
	} else {
		elements = h.module.Registry().Query(point)
	}

	h.respond(c, http.StatusOK, gin.H{
		"injection_point": point,
		"elements":        elements,
	})
}

func (h *APIHandlers) handleGetDialog(c *gin.Context) {
	dialog := h.module.Registry().GetDialog(c.Param("id"))
	if dialog == nil {
		h.respondError(c, http.StatusNotFound, "dialog not found")
		return
	}
	h.respond(c, http.StatusOK, dialog)
}

// DispatchRequest names the action to run: either a button or a dialog
// action, plus the ambient context data and dialog form data.
type DispatchRequest struct {
	PluginID    string                 `json:"plugin_id" binding:"required"`
	ButtonID    string                 `json:"button_id"`
	DialogID    string                 `json:"dialog_id"`
	ActionID    string                 `json:"action_id"`
	ContextData map[string]interface{} `json:"context_data"`
	FormData    map[string]interface{} `json:"form_data"`
}

func (h *APIHandlers) handleDispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid dispatch request: "+err.Error())
		return
	}

	action, ok := h.resolveAction(req)
	if !ok {
		h.respondError(c, http.StatusNotFound, "no such button or dialog action")
		return
	}

	result, err := h.module.DispatchFor(c.Request.Context(), req.PluginID, action, req.ContextData, req.FormData)
	if err != nil {
		// The dispatcher already surfaced a user-facing notification for
		// API failures; the HTTP error here is for the rendering layer.
		h.respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	h.respond(c, http.StatusOK, result)
}

func (h *APIHandlers) resolveAction(req DispatchRequest) (Action, bool) {
	manifest := h.module.Registry().GetManifest(req.PluginID)
	if manifest == nil {
		return Action{}, false
	}

	if req.ButtonID != "" {
		for _, button := range manifest.Buttons {
			if button.ID == req.ButtonID {
				return button.Action, true
			}
		}
		return Action{}, false
	}

	if req.DialogID != "" {
		for _, dialog := range manifest.Dialogs {
			if dialog.ID != req.DialogID {
				continue
			}
			for _, dialogAction := range dialog.Actions {
				if dialogAction.ID == req.ActionID {
					return dialogAction.Action, true
				}
			}
		}
	}

	return Action{}, false
}
