// Package handler holds the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// tenantID returns the tenant resolved by the tenant middleware. It writes a 401 and
// returns false when the route was mounted without that middleware.
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetTenantID(c))
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeTenantMissing, "Identificação do tenant obrigatória")
		return uuid.Nil, false
	}
	return id, true
}

// userID returns the caller id when it is a UUID
func userID(c *gin.Context) *uuid.UUID {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		return nil
	}
	return &id
}

// pathUUID parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: name, Message: "UUID inválido"}})
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Rows sends a row listing with pagination meta
func (h *BaseHandler) Rows(c *gin.Context, rows any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewRowsResponseWithMeta(rows, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Message sends a 200 carrying data and a human readable message
func (h *BaseHandler) Message(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, dto.NewMessageResponse(data, message))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Falha na validação da requisição", middleware.GetRequestID(c), details))
}

// HandleError maps service errors to responses:
//   - field validation errors become ERR_VALIDATION with details
//   - dashboard parse and patch errors become ERR_INVALID_DOCUMENT with one detail per issue
//   - domain errors map by code
//   - anything else is logged and answered with a generic 500
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		details := make([]dto.ValidationDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, dto.ValidationDetail{Field: f.Field, Message: f.Message})
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Falha na validação dos dados", requestID, details))
		return
	}

	if details, ok := documentDetails(err); ok {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidDocument, "Documento de dashboard inválido", requestID)
		resp.Error.Details = details
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Error("request failed", zap.String("code", code), zap.Error(err))
		}
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	_ = c.Error(err)
	logger.L(c.Request.Context()).Error("unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal, "Erro interno do servidor", requestID))
}

func documentDetails(err error) ([]dto.ValidationDetail, bool) {
	var perr *dashboard.PatchError
	if errors.As(err, &perr) {
		prefix := fmt.Sprintf("patches[%d]", perr.Index)
		var inner *dashboard.ParseError
		if errors.As(perr.Err, &inner) {
			return issueDetails(prefix+".", inner.Issues), true
		}
		return []dto.ValidationDetail{{Field: prefix, Message: perr.Err.Error()}}, true
	}

	var parseErr *dashboard.ParseError
	if errors.As(err, &parseErr) {
		return issueDetails("", parseErr.Issues), true
	}
	return nil, false
}

func issueDetails(prefix string, issues []dashboard.Issue) []dto.ValidationDetail {
	out := make([]dto.ValidationDetail, 0, len(issues))
	for _, i := range issues {
		field := prefix + i.Path
		if i.Path == "" {
			field = prefix + "document"
		}
		out = append(out, dto.ValidationDetail{Field: field, Message: i.Message})
	}
	return out
}
