package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/unioncms/unioncms/internal/config"
	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/present/rest/presenter"
	"github.com/unioncms/unioncms/internal/service"
	"github.com/unioncms/unioncms/internal/usecase"
)

type Handler struct {
	site    config.Site
	content *usecase.ContentUsecase
	lock    *usecase.LockUsecase
	backup  *usecase.BackupUsecase
	signal  *service.SignalService
	blob    usecase.BlobStore
}

func NewHandler(
	site config.Site,
	content *usecase.ContentUsecase,
	lock *usecase.LockUsecase,
	backup *usecase.BackupUsecase,
	signal *service.SignalService,
	blob usecase.BlobStore,
) *Handler {
	return &Handler{
		site:    site,
		content: content,
		lock:    lock,
		backup:  backup,
		signal:  signal,
		blob:    blob,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/unioncms", h.handleWellKnown)

	e.GET("/api/v1/locks/:collection/:id", h.handleLockStatus)
	e.POST("/api/v1/locks/:collection/:id", h.handleLockAcquire)
	e.DELETE("/api/v1/locks/:collection/:id", h.handleLockRelease)
	e.DELETE("/api/v1/locks", h.handleLockReleaseAll)

	e.GET("/api/v1/conflicts", h.handleConflictList)
	e.POST("/api/v1/conflicts/:id/resolve", h.handleConflictResolve)

	e.GET("/api/v1/backup", h.handleBackupExport)
	e.POST("/api/v1/backup/restore", h.handleBackupRestore)

	e.POST("/api/v1/files", h.handleFileUpload)
	e.DELETE("/api/v1/files/:name", h.handleFileDelete)

	e.GET("/api/v1/:collection", h.handleList)
	e.POST("/api/v1/:collection", h.handleCreate)
	e.GET("/api/v1/:collection/:id", h.handleGet)
	e.PUT("/api/v1/:collection/:id", h.handleUpdate)
	e.DELETE("/api/v1/:collection/:id", h.handleDelete)
	e.GET("/api/v1/:collection/:id/history", h.handleHistory)

	e.GET("/realtime", h.handleRealtime)
}

// actorFrom returns the authenticated actor, or an anonymous one when the
// request carried no valid token.
func actorFrom(c echo.Context) domain.Actor {
	actor, ok := c.Request().Context().Value(domain.ActorCtxKey).(domain.Actor)
	if !ok {
		return domain.Actor{Role: domain.RoleUnknown}
	}
	return actor
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	return presenter.OK(c, echo.Map{
		"version": domain.BackupVersion,
		"name":    h.site.Name,
		"domain":  h.site.FQDN,
		"endpoints": echo.Map{
			"edu.unioncms.content":  "/api/v1/{collection}",
			"edu.unioncms.locks":    "/api/v1/locks/{collection}/{id}",
			"edu.unioncms.backup":   "/api/v1/backup",
			"edu.unioncms.files":    "/api/v1/files",
			"edu.unioncms.realtime": "/realtime",
		},
	})
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	query := usecase.ListQuery{
		Status:     domain.Status(c.QueryParam("status")),
		Category:   c.QueryParam("category"),
		OrderBy:    c.QueryParam("orderBy"),
		Descending: c.QueryParam("order") == "desc",
	}

	limitStr := c.QueryParam("limit")
	if limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		query.Limit = limit
	}

	items, err := h.content.List(ctx, kind, query)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, items)
}

func (h *Handler) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	item, err := h.content.Get(ctx, kind, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, item)
}

type createRequest struct {
	Status domain.Status   `json:"status,omitempty"`
	Fields json.RawMessage `json:"fields"`
}

func (h *Handler) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	payload, err := domain.DecodePayload(kind, req.Fields)
	if err != nil {
		return presenter.FromError(c, err)
	}

	item, err := h.content.Create(ctx, actorFrom(c), kind, req.Status, payload)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.Created(c, item)
}

type updateRequest struct {
	BaseUpdatedAt time.Time      `json:"baseUpdatedAt"`
	Status        domain.Status  `json:"status,omitempty"`
	Fields        map[string]any `json:"fields"`
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	actor := actorFrom(c)
	item, err := h.content.Update(ctx, actor, domain.ChangeSet{
		Collection:    kind,
		ContentID:     c.Param("id"),
		BaseUpdatedAt: req.BaseUpdatedAt,
		Status:        req.Status,
		Fields:        req.Fields,
		Actor:         actor.ID,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, item)
}

func (h *Handler) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	if err := h.content.Delete(ctx, actorFrom(c), kind, c.Param("id")); err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleHistory(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	entries, err := h.content.History(ctx, actorFrom(c), kind, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, entries)
}

func (h *Handler) handleLockStatus(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	lock, err := h.lock.Status(ctx, kind, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, lock)
}

func (h *Handler) handleLockAcquire(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	actor := actorFrom(c)
	if actor.Role < domain.RoleEditor {
		return presenter.FromError(c, domain.PermissionError{Actor: actor.ID, Required: domain.RoleEditor})
	}

	lock, err := h.lock.Acquire(ctx, actor, kind, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, lock)
}

func (h *Handler) handleLockRelease(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := domain.ParseKind(c.Param("collection"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	if err := h.lock.Release(ctx, actorFrom(c), kind, c.Param("id")); err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleLockReleaseAll(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.lock.ReleaseAll(ctx, actorFrom(c)); err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleConflictList(c echo.Context) error {
	ctx := c.Request().Context()

	records, err := h.content.ListConflicts(ctx, actorFrom(c))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, records)
}

type resolveRequest struct {
	KeepLocal bool `json:"keepLocal"`
}

func (h *Handler) handleConflictResolve(c echo.Context) error {
	ctx := c.Request().Context()

	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	item, err := h.content.ResolveConflict(ctx, actorFrom(c), c.Param("id"), req.KeepLocal)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, item)
}

func (h *Handler) handleBackupExport(c echo.Context) error {
	ctx := c.Request().Context()

	backup, err := h.backup.Export(ctx, actorFrom(c), c.QueryParam("name"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, backup)
}

func (h *Handler) handleBackupRestore(c echo.Context) error {
	ctx := c.Request().Context()

	var backup domain.Backup
	if err := c.Bind(&backup); err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.backup.Restore(ctx, actorFrom(c), backup)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleFileUpload(c echo.Context) error {
	ctx := c.Request().Context()

	actor := actorFrom(c)
	if actor.Role < domain.RoleEditor {
		return presenter.FromError(c, domain.PermissionError{Actor: actor.ID, Required: domain.RoleEditor})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return presenter.BadRequestMessage(c, "file field is required")
	}

	src, err := file.Open()
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	defer src.Close()

	url, err := h.blob.Upload(ctx, file.Filename, src)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.Created(c, echo.Map{"url": url})
}

func (h *Handler) handleFileDelete(c echo.Context) error {
	ctx := c.Request().Context()

	actor := actorFrom(c)
	if actor.Role < domain.RoleEditor {
		return presenter.FromError(c, domain.PermissionError{Actor: actor.ID, Required: domain.RoleEditor})
	}

	if err := h.blob.Delete(ctx, c.Param("name")); err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type        string   `json:"type"`
	Collections []string `json:"collections"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	input := make(chan []string)
	defer close(input)
	output := make(chan domain.ChangeEvent)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				input <- req.Collections
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
