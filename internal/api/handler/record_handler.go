package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/crm-api/internal/api/metrics"
	"github.com/bizdesk/crm-api/internal/core/ports"
)

// RecordHandler serves CRUD for one CRM record kind.
type RecordHandler[T any] struct {
	kind    string
	service ports.RecordService[T]
}

func NewRecordHandler[T any](kind string, service ports.RecordService[T]) *RecordHandler[T] {
	return &RecordHandler[T]{kind: kind, service: service}
}

type listQuery struct {
	Status string `query:"status"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
}

// Register mounts the record routes on g. write guards create and update;
// remove guards delete.
func (h *RecordHandler[T]) Register(g *echo.Group, write, remove echo.MiddlewareFunc) {
	g.GET("", h.List)
	g.POST("", h.Create, write)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update, write)
	g.DELETE("/:id", h.Delete, remove)
}

// List handles GET /v1/{kind}.
//
// @Summary      List records
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        kind    path      string  true   "clients, employees, projects or revenue"
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (1-based)"
// @Param        limit   query     int     false  "Page size (max 100)"
// @Success      200     {object}  map[string]any
// @Failure      401     {object}  errorResponse
// @Router       /v1/{kind} [get]
func (h *RecordHandler[T]) List(c echo.Context) error {
	var q listQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return invalidPayload(err)
	}

	page, err := h.service.List(c.Request().Context(), ports.ListFilter{
		Status: q.Status,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/{kind}/:id.
//
// @Summary      Get a record
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "clients, employees, projects or revenue"
// @Param        id    path      string  true  "Record id"
// @Success      200   {object}  map[string]any
// @Failure      404   {object}  errorResponse
// @Router       /v1/{kind}/{id} [get]
func (h *RecordHandler[T]) Get(c echo.Context) error {
	rec, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// Create handles POST /v1/{kind}.
//
// @Summary      Create a record
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "clients, employees, projects or revenue"
// @Success      201   {object}  map[string]any
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/{kind} [post]
func (h *RecordHandler[T]) Create(c echo.Context) error {
	rec := new(T)
	if err := c.Bind(rec); err != nil {
		return invalidPayload(err)
	}
	if err := c.Validate(rec); err != nil {
		return err
	}

	created, err := h.service.Create(c.Request().Context(), rec)
	if err != nil {
		return err
	}
	metrics.RecordWritesTotal.WithLabelValues(h.kind, "create").Inc()
	return c.JSON(http.StatusCreated, created)
}

// Update handles PUT /v1/{kind}/:id. The body replaces the stored record.
//
// @Summary      Replace a record
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "clients, employees, projects or revenue"
// @Param        id    path      string  true  "Record id"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/{kind}/{id} [put]
func (h *RecordHandler[T]) Update(c echo.Context) error {
	rec := new(T)
	if err := (&echo.DefaultBinder{}).BindBody(c, rec); err != nil {
		return invalidPayload(err)
	}
	if err := c.Validate(rec); err != nil {
		return err
	}

	updated, err := h.service.Update(c.Request().Context(), c.Param("id"), rec)
	if err != nil {
		return err
	}
	metrics.RecordWritesTotal.WithLabelValues(h.kind, "update").Inc()
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/{kind}/:id.
//
// @Summary      Delete a record
// @Tags         records
// @Security     BearerAuth
// @Param        kind  path  string  true  "clients, employees, projects or revenue"
// @Param        id    path  string  true  "Record id"
// @Success      204
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/{kind}/{id} [delete]
func (h *RecordHandler[T]) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	metrics.RecordWritesTotal.WithLabelValues(h.kind, "delete").Inc()
	return c.NoContent(http.StatusNoContent)
}
