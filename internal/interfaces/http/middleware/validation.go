package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes the gin validator report fields by their json (or form) name
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
			}
			return name
		})
	}
}

// FormatValidationErrors turns validator errors into an ERR_VALIDATION response with one
// detail per field
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}
	return dto.NewValidationErrorResponse("Falha na validação da requisição", requestID, details)
}

// HandleBindError writes the response for an error returned by ShouldBind*.
// Oversized bodies give 413, malformed JSON gives ERR_INVALID_JSON, everything else is a
// validation failure.
func HandleBindError(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	var maxErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxErr):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRequestTooLarge, "Corpo da requisição excede o tamanho máximo permitido", requestID))
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidJSON, "JSON inválido", requestID))
	case errors.As(err, &typeErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Falha na validação da requisição", requestID,
			[]dto.ValidationDetail{{Field: typeErr.Field, Message: "Tipo inválido, esperado " + typeErr.Type.String()}}))
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
	}
}

func validationMessage(e validator.FieldError) string {
	isString := e.Kind() == reflect.String
	switch e.Tag() {
	case "required":
		return "Campo obrigatório"
	case "email":
		return "E-mail inválido"
	case "min":
		if isString {
			return "Deve ter pelo menos " + e.Param() + " caracteres"
		}
		return "Deve ser no mínimo " + e.Param()
	case "max":
		if isString {
			return "Deve ter no máximo " + e.Param() + " caracteres"
		}
		return "Deve ser no máximo " + e.Param()
	case "uuid":
		return "UUID inválido"
	case "oneof":
		return "Deve ser um de: " + e.Param()
	case "gte":
		return "Deve ser maior ou igual a " + e.Param()
	case "lte":
		return "Deve ser menor ou igual a " + e.Param()
	case "dive":
		return "Item inválido"
	default:
		return "Valor inválido"
	}
}
