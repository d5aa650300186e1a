package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	recordsapp "github.com/erp/gestao/internal/application/records"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart record body is kept in memory
const multipartMemory = 8 << 20

// RecordService is the part of the record service the handlers use
type RecordService interface {
	Registry() *catalog.Registry
	List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error)
	Get(ctx context.Context, tenantID uuid.UUID, module, name, id string) (records.Row, error)
	Create(ctx context.Context, tenantID uuid.UUID, module, name string, payload map[string]any) (records.Row, error)
	Update(ctx context.Context, tenantID uuid.UUID, module, name, id string, payload map[string]any) (records.Row, error)
	Delete(ctx context.Context, tenantID uuid.UUID, module, name, id string) error
	Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error)
}

// listParams are the query keys that are not column filters
var listParams = map[string]bool{
	"page": true, "page_size": true, "order_by": true, "order_dir": true, "search": true,
}

// aggregateParams are the query keys of an aggregate that are not column filters
var aggregateParams = map[string]bool{
	"measure": true, "aggregation": true, "dimension": true, "bucket": true,
	"from": true, "to": true, "limit": true, "order_dir": true,
}

// RecordHandler serves the generic CRUD routes of catalogued resources
type RecordHandler struct {
	BaseHandler
	records RecordService
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(svc RecordService) *RecordHandler {
	return &RecordHandler{records: svc}
}

// ModuleView groups the resources of one module in the catalog
type ModuleView struct {
	Name      string              `json:"name"`
	Resources []*catalog.Resource `json:"resources"`
}

// Catalog lists every module with its resources and columns
//
//	GET /api/v1/catalog
//
// @ID           getRecordCatalog
// @Summary      List the catalog
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Success      200 {object} dto.Response{data=[]ModuleView}
// @Router       /catalog [get]
func (h *RecordHandler) Catalog(c *gin.Context) {
	reg := h.records.Registry()
	modules := reg.Modules()
	out := make([]ModuleView, 0, len(modules))
	for _, m := range modules {
		out = append(out, ModuleView{Name: m, Resources: reg.ModuleResources(m)})
	}
	h.Success(c, out)
}

// List returns a page of rows. Column filters use the col or col__op query syntax:
//
//	GET /api/v1/financeiro/contas_pagar?status=aberto&valor__gte=100&page=2
//
// @ID           listRecords
// @Summary      List rows of a resource
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module    path  string true  "Module"
// @Param        resource  path  string true  "Resource"
// @Param        page      query int    false "Page" default(1)
// @Param        page_size query int    false "Page size"
// @Param        search    query string false "Full text search"
// @Param        order_by  query string false "Sort column"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} dto.Response{rows=[]records.Row,meta=dto.Meta}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /{module}/{resource} [get]
func (h *RecordHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	filter := shared.DefaultFilter()
	filter.OrderDir = c.Query("order_dir")
	filter.OrderBy = c.Query("order_by")
	filter.Search = c.Query("search")
	var err error
	if filter.Page, err = queryInt(c, "page", 1); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.PageSize, err = queryInt(c, "page_size", recordsapp.DefaultPageSize); err != nil {
		h.HandleError(c, err)
		return
	}
	filter.Filters = queryFilters(c, listParams)

	page, err := h.records.List(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Rows(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get returns one row
//
//	GET /api/v1/:module/:resource/:id
//
// @ID           getRecord
// @Summary      Get a row
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module   path string true "Module"
// @Param        resource path string true "Resource"
// @Param        id       path string true "Row id"
// @Success      200 {object} dto.Response{data=records.Row}
// @Failure      404 {object} dto.Response
// @Router       /{module}/{resource}/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	row, err := h.records.Get(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, row)
}

// Create inserts a row from a JSON object
//
//	POST /api/v1/:module/:resource
//
// @ID           createRecord
// @Summary      Create a row
// @Tags         records
// @Accept       json,x-www-form-urlencoded,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module   path string         true "Module"
// @Param        resource path string         true "Resource"
// @Param        body     body map[string]any true "Column values"
// @Success      201 {object} dto.Response{data=records.Row}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /{module}/{resource} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	payload, err := bindPayload(c)
	if err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	row, err := h.records.Create(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, row)
}

// Update changes the updatable columns present in the body
//
//	PATCH /api/v1/:module/:resource/:id
//
// @ID           updateRecord
// @Summary      Update a row
// @Tags         records
// @Accept       json,x-www-form-urlencoded,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module   path string         true "Module"
// @Param        resource path string         true "Resource"
// @Param        id       path string         true "Row id"
// @Param        body     body map[string]any true "Column values"
// @Success      200 {object} dto.Response{data=records.Row}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /{module}/{resource}/{id} [patch]
func (h *RecordHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	payload, err := bindPayload(c)
	if err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	row, err := h.records.Update(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), c.Param("id"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, row)
}

// Delete removes a row
//
//	DELETE /api/v1/:module/:resource/:id
//
// @ID           deleteRecord
// @Summary      Delete a row
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module   path string true "Module"
// @Param        resource path string true "Resource"
// @Param        id       path string true "Row id"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /{module}/{resource}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, nil, "Registro excluído")
}

// Aggregate computes a measure, optionally grouped by a dimension:
//
//	GET /api/v1/vendas/pedidos/aggregate?measure=total&aggregation=sum&dimension=data_pedido&bucket=month
//
// Without a measure the rows are counted.
//
// @ID           aggregateRecords
// @Summary      Aggregate rows of a resource
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        module      path  string true  "Module"
// @Param        resource    path  string true  "Resource"
// @Param        measure     query string false "Numeric column"
// @Param        aggregation query string false "sum, avg, min, max or count"
// @Param        dimension   query string false "Group by column"
// @Param        bucket      query string false "day, week, month or year"
// @Param        from        query string false "Start date"
// @Param        to          query string false "End date"
// @Success      200 {object} dto.Response{rows=[]records.AggregateRow}
// @Failure      400 {object} dto.Response
// @Router       /{module}/{resource}/aggregate [get]
func (h *RecordHandler) Aggregate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	q := records.AggregateQuery{
		Measure:     c.Query("measure"),
		Aggregation: records.Aggregation(c.Query("aggregation")),
		Dimension:   c.Query("dimension"),
		Bucket:      records.DateBucket(c.Query("bucket")),
		From:        c.Query("from"),
		To:          c.Query("to"),
		OrderDir:    c.Query("order_dir"),
	}
	if q.Aggregation == "" {
		q.Aggregation = records.AggCount
		if q.Measure != "" {
			q.Aggregation = records.AggSum
		}
	}
	var err error
	if q.Limit, err = queryInt(c, "limit", 0); err != nil {
		h.HandleError(c, err)
		return
	}
	if q.Conditions, err = recordsapp.ConditionsFromFilters(queryFilters(c, aggregateParams)); err != nil {
		h.HandleError(c, err)
		return
	}

	rows, err := h.records.Aggregate(c.Request.Context(), tenantID, c.Param("module"), c.Param("resource"), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRowsResponse(rows))
}

// queryFilters collects the query parameters that are not in reserved. Repeated keys
// become a list, which the "in" operator accepts.
func queryFilters(c *gin.Context, reserved map[string]bool) map[string]any {
	out := make(map[string]any)
	for key, values := range c.Request.URL.Query() {
		if reserved[key] || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		out[key] = values
	}
	return out
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, shared.NewValidationError(key, "deve ser um inteiro não negativo")
	}
	return n, nil
}

// bindPayload reads a JSON object, or a url-encoded or multipart form whose values stay
// strings for the catalog to coerce. A form value holding a JSON array (the lines of a
// document) is decoded so it reaches the service as a list.
func bindPayload(c *gin.Context) (map[string]any, error) {
	var form map[string][]string
	switch c.ContentType() {
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		form = c.Request.PostForm
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
		form = c.Request.MultipartForm.Value
	default:
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	payload := make(map[string]any, len(form))
	for key, values := range form {
		switch len(values) {
		case 0:
		case 1:
			payload[key] = formValue(values[0])
		default:
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			payload[key] = list
		}
	}
	return payload, nil
}

func formValue(v string) any {
	trimmed := strings.TrimSpace(v)
	if strings.HasPrefix(trimmed, "[") && json.Valid([]byte(trimmed)) {
		var list []any
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return list
		}
	}
	return v
}
