package records

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
)

// opSeparator splits "valor__gte" into column and operator
const opSeparator = "__"

// ConditionsFromFilters converts the filter map of a request into conditions.
// Keys are a column name optionally suffixed with an operator ("valor__gte"); "in"
// accepts a list or a comma separated string.
func ConditionsFromFilters(filters map[string]any) ([]records.Condition, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]records.Condition, 0, len(keys))
	for _, key := range keys {
		column, rawOp, _ := strings.Cut(key, opSeparator)
		op, ok := records.ParseOperator(rawOp)
		if !ok {
			return nil, shared.NewValidationError(key, fmt.Sprintf("operador %q inválido", rawOp))
		}
		value := filters[key]
		if op == records.OpIn {
			value = asList(value)
		}
		out = append(out, records.Condition{Column: column, Op: op, Value: value})
	}
	return out, nil
}

func asList(v any) any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(x, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return v
}
