package dashboard

import (
	"errors"
	"testing"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "title": " Financeiro ",
  "widgets": [
    {"type": "KPI-Card", "title": "A receber", "position": {"x": 0, "y": 0},
     "dataSource": {"query": {"module": "financeiro", "resource": "contas_receber", "measure": "valor"}},
     "valuePath": "[0].value", "format": "currency"},
    {"id": "fluxo", "type": "line", "position": {"x": 0, "y": 2, "w": 30},
     "dataSource": {"ref": "financeiro.fluxo_caixa"}},
    {"type": "container", "position": {"x": 0, "y": 6},
     "children": [
       {"type": "text", "position": {"x": 0, "y": 0}, "options": {"content": "Notas"}}
     ]}
  ]
}`

func issuePaths(t *testing.T, err error) []string {
	t.Helper()
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	paths := make([]string, len(perr.Issues))
	for i, is := range perr.Issues {
		paths[i] = is.Path
	}
	return paths
}

func TestParse_NormalizesJSON(t *testing.T) {
	doc, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "Financeiro", doc.Title)
	assert.Equal(t, GridConfig{Columns: 12, RowHeight: 80, Gap: IntPtr(16)}, doc.GridConfig)
	assert.Equal(t, []string{"kpi-1", "fluxo", "container-1", "text-1"}, doc.WidgetIDs())

	kpi := doc.Widgets[0]
	assert.Equal(t, "kpi", kpi.Type)
	assert.Equal(t, Position{X: 0, Y: 0, W: 3, H: 2}, kpi.Position)
	assert.Equal(t, "sum", kpi.DataSource.Query.Aggregation)

	assert.Equal(t, 12, doc.Widgets[1].Position.W, "width is clamped to the grid")
	assert.Equal(t, Position{X: 0, Y: 0, W: 12, H: 1}, doc.Widgets[2].Children[0].Position)
}

func TestParse_YAML(t *testing.T) {
	yamlDoc := `
title: Vendas
gridConfig:
  columns: 6
  theme: Dark
widgets:
  - id: total
    type: kpi
    position: {x: 0, y: 0, w: 2, h: 2}
    dataSource:
      static: {total: 1500.5}
    valuePath: total
`
	fromYAML, err := Parse([]byte(yamlDoc))
	require.NoError(t, err)
	assert.Equal(t, "dark", fromYAML.GridConfig.Theme)
	assert.Equal(t, 6, fromYAML.GridConfig.Columns)

	fromJSON, err := Parse([]byte(`{"title":"Vendas","gridConfig":{"columns":6,"theme":"dark"},
		"widgets":[{"id":"total","type":"kpi","position":{"x":0,"y":0,"w":2,"h":2},
		"dataSource":{"static":{"total":1500.5}},"valuePath":"total"}]}`))
	require.NoError(t, err)

	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Errorf("YAML and JSON documents differ (-json +yaml):\n%s", diff)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	text, err := Stringify(doc)
	require.NoError(t, err)

	again, err := Parse(text)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip changed the document (-first +second):\n%s", diff)
	}

	text2, err := Stringify(again)
	require.NoError(t, err)
	assert.Equal(t, string(text), string(text2))
}

func TestParse_ExplicitZeroGap(t *testing.T) {
	doc, err := Parse([]byte(`{"gridConfig": {"columns": 12, "rowHeight": 80, "gap": 0}, "widgets": []}`))
	require.NoError(t, err)
	require.NotNil(t, doc.GridConfig.Gap)
	assert.Equal(t, 0, doc.GridConfig.GapPx())

	text, err := Stringify(doc)
	require.NoError(t, err)
	again, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, 0, again.GridConfig.GapPx())

	yamlDoc, err := Parse([]byte("gridConfig:\n  gap: 0\nwidgets: []\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, yamlDoc.GridConfig.GapPx())

	defaulted, err := Parse([]byte(`{"gridConfig": {"columns": 6}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultGap, defaulted.GridConfig.GapPx())

	_, err = Parse([]byte(`{"gridConfig": {"gap": 65}}`))
	assert.Contains(t, issuePaths(t, err), "gridConfig.gap")
}

func TestParse_EmptyDocument(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Widgets)

	text, err := Stringify(doc)
	require.NoError(t, err)
	assert.Contains(t, string(text), `"widgets": []`)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		paths []string
	}{
		{
			name:  "empty input",
			input: "  ",
			paths: []string{""},
		},
		{
			name:  "unknown attribute",
			input: `{"widgets": [], "layout": "grid"}`,
			paths: []string{""},
		},
		{
			name:  "not an object",
			input: "- a\n- b\n",
			paths: []string{""},
		},
		{
			name: "structural problems are all reported",
			input: `{"gridConfig": {"columns": 40}, "widgets": [
				{"id": "a", "type": "gauge", "position": {"x": 0, "y": 0, "w": 2, "h": 2}},
				{"id": "a", "type": "bar", "position": {"x": 38, "y": 0, "w": 4, "h": 2}},
				{"id": "t", "type": "text", "position": {"x": 0, "y": 1}, "children": [{"type": "text", "position": {"x": 0, "y": 0}}]}
			]}`,
			paths: []string{
				"gridConfig.columns",
				"widgets[0].type",
				"widgets[1].id",
				"widgets[1].position",
				"widgets[1].dataSource",
				"widgets[2].children",
			},
		},
		{
			name: "data source rules",
			input: `{"widgets": [
				{"id": "k", "type": "kpi", "dataSource": {"ref": "x", "static": 1}},
				{"id": "b", "type": "bar", "format": "emoji",
				 "dataSource": {"query": {"module": "vendas", "resource": "pedidos; drop", "aggregation": "median"}}}
			]}`,
			paths: []string{
				"widgets[0].dataSource",
				"widgets[1].format",
				"widgets[1].dataSource.query.aggregation",
				"widgets[1].dataSource.query.resource",
				"widgets[1].dataSource.query.measure",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Equal(t, tt.paths, issuePaths(t, err))
		})
	}
}

func TestComponents(t *testing.T) {
	types := ComponentTypes()
	assert.Equal(t, []string{"area", "bar", "container", "kpi", "line", "pie", "table", "text"}, types)

	for _, c := range Components() {
		assert.NotEmpty(t, c.Component, c.Type)
		assert.Positive(t, c.DefaultW, c.Type)
		assert.LessOrEqual(t, c.DefaultW, DefaultColumns, c.Type)
	}

	spec, ok := Component("container")
	require.True(t, ok)
	assert.True(t, spec.AllowsChildren)
	assert.False(t, spec.NeedsData)
}
