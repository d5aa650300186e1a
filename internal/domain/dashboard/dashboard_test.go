package dashboard

import (
	"testing"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDashboard(t *testing.T) {
	tenantID := uuid.New()

	d, err := NewDashboard(tenantID, "  Vendas  ", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Vendas", d.Name)
	assert.Equal(t, 1, d.Version)
	assert.Equal(t, tenantID, d.TenantID)
	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.Equal(t, DefaultColumns, d.Document.GridConfig.Columns)

	_, err = NewDashboard(tenantID, " ", "", nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewDashboard(tenantID, "x", "", &Document{Widgets: []Widget{{Type: "gauge"}}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDashboard_Mutations(t *testing.T) {
	d, err := NewDashboard(uuid.New(), "Vendas", "", nil)
	require.NoError(t, err)

	require.NoError(t, d.ApplyPatches([]Patch{{Op: OpAppendWidget, Widget: &Widget{ID: "nota", Type: "text"}}}))
	assert.Equal(t, 2, d.Version)
	assert.Equal(t, []string{"nota"}, d.Document.WidgetIDs())

	err = d.ApplyPatches([]Patch{{Op: OpRemoveWidget, WidgetID: "x"}})
	assert.Error(t, err)
	assert.Equal(t, 2, d.Version)

	require.NoError(t, d.Replace(&Document{Title: "Novo"}))
	assert.Equal(t, 3, d.Version)
	assert.Empty(t, d.Document.Widgets)

	require.NoError(t, d.Rename("Vendas 2025", "anual"))
	assert.Equal(t, 4, d.Version)
	assert.Error(t, d.Rename("", ""))
}
