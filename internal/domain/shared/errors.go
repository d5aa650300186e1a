package shared

import (
	"fmt"
	"sort"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies compare equal to the sentinels
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Registro não encontrado")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Registro já existe")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Dados inválidos")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "O registro foi alterado por outro processo")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Não autorizado")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Acesso negado")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operação não permitida no estado atual")
	ErrRateLimited         = NewDomainError("RATE_LIMITED", "Limite de requisições excedido")
	ErrUpstream            = NewDomainError("UPSTREAM_ERROR", "Falha ao chamar serviço externo")
)

// FieldError describes a problem with one input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field level problems found while validating a payload
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field problem
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field problem was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Err returns nil when no problem was recorded, so callers can `return v.Err()`
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool { return e.Fields[i].Field < e.Fields[j].Field })
	return e
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalidInput) match validation failures
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
