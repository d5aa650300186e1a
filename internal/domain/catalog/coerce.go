package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errNotNumber  = errors.New("valor numérico inválido")
	errNotInteger = errors.New("valor inteiro inválido")
	errNotBool    = errors.New("valor booleano inválido")
	errNotDate    = errors.New("data inválida (use AAAA-MM-DD ou DD/MM/AAAA)")
	errNotTime    = errors.New("data/hora inválida")
	errNotUUID    = errors.New("identificador inválido")
	errNotJSON    = errors.New("JSON inválido")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04",
}

// coerce converts a JSON-decoded or form value into the Go value bound for the column.
// Empty strings on non-text columns are treated as absent and return nil.
func coerce(c Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && c.Type != TypeText && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch c.Type {
	case TypeText:
		return coerceText(c, raw)
	case TypeInteger:
		return coerceInteger(raw)
	case TypeNumeric:
		return ParseDecimal(raw)
	case TypeBoolean:
		return coerceBool(raw)
	case TypeDate:
		return coerceDate(raw)
	case TypeTimestamp:
		return coerceTimestamp(raw)
	case TypeUUID:
		return coerceUUID(raw)
	case TypeJSON:
		return coerceJSON(raw)
	}
	return nil, fmt.Errorf("tipo de coluna desconhecido %q", c.Type)
}

func coerceText(c Column, raw any) (any, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64, int, int64, bool:
		s = fmt.Sprint(v)
	default:
		return nil, errors.New("texto esperado")
	}
	// blank required or enum values count as absent, so defaults and the required check apply
	if (c.Required || len(c.Enum) > 0) && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if len(c.Enum) > 0 && !slices.Contains(c.Enum, s) {
		return nil, fmt.Errorf("valor deve ser um de: %s", strings.Join(c.Enum, ", "))
	}
	return s, nil
}

func coerceInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errNotInteger
		}
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, errNotInteger
		}
		return int64(v), nil
	case json.Number:
		return parseInt(v.String())
	case string:
		return parseInt(v)
	}
	return nil, errNotInteger
}

func parseInt(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, errNotInteger
	}
	return n, nil
}

// ParseDecimal accepts numbers and numeric strings written as "1234.56", "1,234.56" or in the
// Brazilian form "1.234,56" (an optional "R$" prefix is ignored).
func ParseDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, errNotNumber
		}
		return d, nil
	case string:
		return decimalFromString(v)
	case []byte:
		return decimalFromString(string(v))
	}
	return decimal.Zero, errNotNumber
}

// decimalFromString resolves the decimal separator before parsing. With both "." and ","
// present the rightmost one is the decimal separator and the other groups thousands. A single
// kind of separator repeated must form valid groups of three. A lone "," is decimal (pt-BR)
// and a lone "." is decimal (machine form), so "1.234" is 1.234.
func decimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	s = strings.ReplaceAll(s, " ", "")

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	var intPart, fracPart, group string
	hasFrac := true
	switch {
	case lastDot >= 0 && lastComma >= 0:
		i := max(lastDot, lastComma)
		intPart, fracPart = s[:i], s[i+1:]
		group = ","
		if i == lastComma {
			group = "."
		}
		if strings.ContainsAny(fracPart, ".,") {
			return decimal.Zero, errNotNumber
		}
	case lastComma >= 0 || lastDot >= 0:
		sep := ","
		if lastDot >= 0 {
			sep = "."
		}
		if strings.Count(s, sep) == 1 {
			intPart, fracPart, _ = strings.Cut(s, sep)
		} else {
			intPart, group, hasFrac = s, sep, false
		}
	default:
		intPart, hasFrac = s, false
	}

	if group != "" {
		var ok bool
		if intPart, ok = ungroup(intPart, group); !ok {
			return decimal.Zero, errNotNumber
		}
	}
	if intPart == "" && hasFrac && group == "" {
		intPart = "0"
	}
	if intPart == "" || !isDigits(intPart) || (hasFrac && (fracPart == "" || !isDigits(fracPart))) {
		return decimal.Zero, errNotNumber
	}

	text := sign + intPart
	if hasFrac {
		text += "." + fracPart
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, errNotNumber
	}
	return d, nil
}

// ungroup removes thousand separators, requiring 1-3 leading digits and groups of exactly three
func ungroup(s, sep string) (string, bool) {
	parts := strings.Split(s, sep)
	if len(parts) == 1 {
		return s, true
	}
	if l := len(parts[0]); l == 0 || l > 3 {
		return "", false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return "", false
		}
	}
	return strings.Join(parts, ""), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func coerceBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "sim", "s", "yes", "on":
			return true, nil
		case "false", "f", "0", "não", "nao", "n", "no", "off":
			return false, nil
		}
	}
	return nil, errNotBool
}

// coerceDate normalizes to YYYY-MM-DD so the value binds to a date column unchanged
func coerceDate(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.Format(time.DateOnly), nil
	case string:
		s := strings.TrimSpace(v)
		if len(s) > 10 {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.Format(time.DateOnly), nil
			}
		}
		for _, layout := range []string{time.DateOnly, "02/01/2006"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(time.DateOnly), nil
			}
		}
	}
	return nil, errNotDate
}

func coerceTimestamp(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if d, err := coerceDate(s); err == nil {
			t, _ := time.Parse(time.DateOnly, d.(string))
			return t, nil
		}
	}
	return nil, errNotTime
}

func coerceUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, errNotUUID
		}
		return id.String(), nil
	}
	return nil, errNotUUID
}

// coerceJSON returns the JSON text of the value; strings must already be valid JSON
func coerceJSON(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		if !json.Valid([]byte(s)) {
			return nil, errNotJSON
		}
		return s, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errNotJSON
	}
	return string(b), nil
}
