package dashboard

import (
	"testing"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patchFixture(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse([]byte(`{"widgets": [
		{"id": "receita", "type": "kpi", "title": "Receita", "dataSource": {"static": {"v": 1}}, "valuePath": "v",
		 "styling": {"color": "green"}},
		{"id": "grupo", "type": "container", "position": {"x": 0, "y": 2},
		 "children": [{"id": "nota", "type": "text", "options": {"content": "a"}}]},
		{"id": "tabela", "type": "table", "position": {"x": 0, "y": 8}, "dataSource": {"ref": "vendas.ultimos"}}
	]}`))
	require.NoError(t, err)
	return doc
}

func TestApplyPatches_UpdateAttrs(t *testing.T) {
	doc := patchFixture(t)
	before := doc.Clone()

	out, err := ApplyPatches(doc, []Patch{{
		Op:       OpUpdateWidgetAttrs,
		WidgetID: "receita",
		Attrs: map[string]any{
			"id":      "receita",
			"title":   "Receita bruta",
			"styling": map[string]any{"fontSize": 18.0},
			"format":  nil,
		},
	}})
	require.NoError(t, err)

	w, ok := out.Find("receita")
	require.True(t, ok)
	assert.Equal(t, "Receita bruta", w.Title)
	assert.Equal(t, map[string]any{"fontSize": 18.0}, w.Styling, "attributes are replaced, not merged")
	assert.Equal(t, "v", w.ValuePath)

	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("input document was mutated:\n%s", diff)
	}
}

func TestApplyPatches_TreeOps(t *testing.T) {
	doc := patchFixture(t)

	out, err := ApplyPatches(doc, []Patch{
		{Op: OpInsertWidgetAfter, AfterID: "nota", Widget: &Widget{Type: "kpi", DataSource: &DataSource{Ref: "crm.leads"}}},
		{Op: OpRemoveWidget, WidgetID: "tabela"},
		{Op: OpAppendWidget, Widget: &Widget{ID: "rodape", Type: "text"}},
		{Op: OpAppendWidget, ParentID: "grupo", Widget: &Widget{ID: "obs", Type: "text"}},
		{Op: OpUpdateGrid, GridConfig: &GridConfig{Columns: 16, Theme: "dark"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"receita", "grupo", "nota", "kpi-1", "obs", "rodape"}, out.WidgetIDs())
	assert.Equal(t, GridConfig{Columns: 16, RowHeight: DefaultRowHeight, Gap: IntPtr(DefaultGap), Theme: "dark"}, out.GridConfig)
	assert.Equal(t, []string{"receita", "grupo", "nota", "tabela"}, doc.WidgetIDs())
}

func TestApplyPatches_UpdateGridKeepsZeroGap(t *testing.T) {
	doc := patchFixture(t)

	out, err := ApplyPatches(doc, []Patch{
		{Op: OpUpdateGrid, GridConfig: &GridConfig{Columns: 12, RowHeight: 60, Gap: IntPtr(0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.GridConfig.GapPx())
	assert.Equal(t, DefaultGap, doc.GridConfig.GapPx())
}

func TestApplyPatches_Atomic(t *testing.T) {
	tests := []struct {
		name    string
		patches []Patch
		target  error
	}{
		{
			name:    "unknown widget",
			patches: []Patch{{Op: OpRemoveWidget, WidgetID: "nota"}, {Op: OpRemoveWidget, WidgetID: "fantasma"}},
			target:  ErrWidgetNotFound,
		},
		{
			name:    "unknown op",
			patches: []Patch{{Op: "rename-widget", WidgetID: "nota"}},
			target:  ErrUnknownPatchOp,
		},
		{
			name:    "id is immutable",
			patches: []Patch{{Op: OpUpdateWidgetAttrs, WidgetID: "nota", Attrs: map[string]any{"id": "outra"}}},
			target:  ErrImmutableID,
		},
		{
			name:    "unknown attribute",
			patches: []Patch{{Op: OpUpdateWidgetAttrs, WidgetID: "nota", Attrs: map[string]any{"cor": "azul"}}},
			target:  ErrUnknownAttr,
		},
		{
			name:    "append into a non container",
			patches: []Patch{{Op: OpAppendWidget, ParentID: "receita", Widget: &Widget{Type: "text"}}},
			target:  ErrNotContainer,
		},
		{
			name:    "missing widget body",
			patches: []Patch{{Op: OpInsertWidgetAfter, AfterID: "receita"}},
			target:  ErrMissingWidget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := patchFixture(t)
			before := doc.Clone()

			out, err := ApplyPatches(doc, tt.patches)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Same(t, doc, out)
			if diff := cmp.Diff(before, doc); diff != "" {
				t.Errorf("failed batch mutated the document:\n%s", diff)
			}
		})
	}
}

func TestApplyPatches_RevalidatesResult(t *testing.T) {
	doc := patchFixture(t)

	_, err := ApplyPatches(doc, []Patch{
		{Op: OpInsertWidgetAfter, AfterID: "receita", Widget: &Widget{ID: "nota", Type: "text"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Contains(t, err.Error(), "repetido")

	_, err = ApplyPatches(doc, []Patch{
		{Op: OpUpdateWidgetAttrs, WidgetID: "receita", Attrs: map[string]any{"dataSource": nil}},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDocument_Clone(t *testing.T) {
	doc := patchFixture(t)
	c := doc.Clone()

	c.Widgets[0].Styling["color"] = "red"
	c.Widgets[0].DataSource.Static.(map[string]any)["v"] = 2
	c.Widgets[1].Children[0].Options["content"] = "b"

	assert.Equal(t, "green", doc.Widgets[0].Styling["color"])
	assert.Equal(t, 1.0, doc.Widgets[0].DataSource.Static.(map[string]any)["v"])
	assert.Equal(t, "a", doc.Widgets[1].Children[0].Options["content"])
}
