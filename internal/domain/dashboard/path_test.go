package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedRow map[string]any

func TestResolvePath(t *testing.T) {
	data := map[string]any{
		"resumo": map[string]any{"total": 1500.5, "meses": []any{"jan", "fev", "mar"}},
		"rows": []any{
			map[string]any{"key": "pago", "value": 10.0},
			map[string]any{"key": "pendente", "value": 4.0},
		},
		"typed": []namedRow{{"nome": "ACME"}},
		"nulo":  nil,
	}

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"", data, true},
		{"resumo.total", 1500.5, true},
		{"resumo.meses.1", "fev", true},
		{"resumo.meses[2]", "mar", true},
		{"resumo.meses[-1]", "mar", true},
		{"rows[1].key", "pendente", true},
		{"rows.0.value", 10.0, true},
		{"typed[0].nome", "ACME", true},
		{"nulo", nil, true},
		{"nulo.x", nil, false},
		{"resumo.inexistente", nil, false},
		{"rows[5]", nil, false},
		{"rows[x]", nil, false},
		{"rows[0", nil, false},
		{"resumo..total", nil, false},
		{"resumo.total.x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ResolvePath(data, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolvePath_RootIndex(t *testing.T) {
	got, ok := ResolvePath([]any{map[string]any{"value": 3.0}}, "[0].value")
	assert.True(t, ok)
	assert.Equal(t, 3.0, got)
}
