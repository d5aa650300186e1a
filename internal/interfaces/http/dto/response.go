package dto

import "time"

const defaultPageSize = 20

// Response is the envelope of every API response.
// Rows carries plain row lists (records, aggregates); Data carries single objects.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Rows    any        `json:"rows,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail is one invalid field, or one invalid path of a dashboard document
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewMessageResponse creates a success response carrying data and a human readable message
func NewMessageResponse(data any, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

// NewRowsResponse creates a success response listing rows
func NewRowsResponse(rows any) Response {
	return Response{Success: true, Rows: rows}
}

// NewRowsResponseWithMeta creates a row listing with pagination meta.
// A non-positive pageSize counts as 20.
func NewRowsResponseWithMeta(rows any, total int64, page, pageSize int) Response {
	return Response{Success: true, Rows: rows, Meta: newMeta(total, page, pageSize)}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta.
// A non-positive pageSize counts as 20.
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	return Response{Success: true, Data: data, Meta: newMeta(total, page, pageSize)}
}

func newMeta(total int64, page, pageSize int) *Meta {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &Meta{Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

// NewErrorResponse creates an error response. The code is normalized and the message
// is repeated at the top level for clients that only read message.
func NewErrorResponse(code, message string) Response {
	return NewErrorResponseWithRequestID(code, message, "")
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Message: message,
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now(),
		},
	}
}

// NewValidationErrorResponse creates an ERR_VALIDATION response with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// ListRequest represents common list/pagination query parameters
type ListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by" binding:"omitempty,max=63"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search" binding:"omitempty,max=200"`
}

// IDRequest represents a request with a UUID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}
