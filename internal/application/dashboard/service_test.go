package dashboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/export"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of dashboard.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*dashboard.Dashboard, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.Dashboard), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]dashboard.Dashboard, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]dashboard.Dashboard), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Create(ctx context.Context, d *dashboard.Dashboard) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockRepository) Update(ctx context.Context, d *dashboard.Dashboard, expectedVersion int) error {
	return m.Called(ctx, d, expectedVersion).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockRecordSource is a mock implementation of RecordSource
type MockRecordSource struct {
	mock.Mock
}

func (m *MockRecordSource) Resource(module, name string) (*catalog.Resource, error) {
	return catalog.DefaultRegistry().Lookup(module, name)
}

func (m *MockRecordSource) List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error) {
	args := m.Called(ctx, tenantID, module, name, filter)
	return args.Get(0).(shared.Paginated[records.Row]), args.Error(1)
}

func (m *MockRecordSource) Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error) {
	args := m.Called(ctx, tenantID, module, name, q)
	return args.Get(0).([]records.AggregateRow), args.Error(1)
}

type fakePDF struct {
	html string
	err  error
}

func (f *fakePDF) RenderPDF(_ context.Context, req export.PDFRequest) ([]byte, error) {
	f.html = req.HTML
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4"), nil
}

func (f *fakePDF) Close() error { return nil }

const financeDoc = `{
  "title": "Financeiro",
  "widgets": [
    {"id": "total", "type": "kpi", "format": "currency",
     "dataSource": {"query": {"module": "financeiro", "resource": "contas_receber", "measure": "valor"}}},
    {"id": "mensal", "type": "bar", "dataSource": {"ref": "financeiro.receitas_mensais"}},
    {"id": "ultimas", "type": "table", "position": {"x": 0, "y": 6, "w": 12, "h": 5},
     "dataSource": {"query": {"module": "financeiro", "resource": "contas_receber",
       "columns": ["descricao", "valor"], "limit": 5, "from": "2025-01-01"}}}
  ]
}`

func storedDashboard(t *testing.T, tenantID uuid.UUID, doc string) *dashboard.Dashboard {
	t.Helper()
	parsed, err := dashboard.Parse([]byte(doc))
	require.NoError(t, err)
	d, err := dashboard.NewDashboard(tenantID, "Painel Financeiro", "", parsed)
	require.NoError(t, err)
	return d
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("stores the normalized document", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(d *dashboard.Dashboard) bool {
			return d.TenantID == tenantID && d.Version == 1 && len(d.Document.Widgets) == 3
		})).Return(nil)

		resp, err := svc.Create(ctx, tenantID, CreateDashboardRequest{
			Name:     "  Painel Financeiro ",
			Document: json.RawMessage(financeDoc),
		})
		require.NoError(t, err)
		assert.Equal(t, "Painel Financeiro", resp.Name)
		assert.Equal(t, 12, resp.Document.GridConfig.Columns)
		assert.Equal(t, 3, resp.Document.Widgets[0].Position.W)
		repo.AssertExpectations(t)
	})

	t.Run("empty document", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := svc.Create(ctx, tenantID, CreateDashboardRequest{Name: "Vazio"})
		require.NoError(t, err)
		assert.Empty(t, resp.Document.Widgets)
	})

	t.Run("invalid document is rejected before storage", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)

		_, err := svc.Create(ctx, tenantID, CreateDashboardRequest{
			Name:     "Quebrado",
			Document: json.RawMessage(`{"widgets": [{"type": "radar"}]}`),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockRepository)
	svc := NewService(repo, new(MockRecordSource), nil, nil)

	d := storedDashboard(t, tenantID, financeDoc)
	repo.On("List", ctx, tenantID, shared.Filter{Page: 1, PageSize: 20, OrderDir: "desc", Search: "fin"}).
		Return([]dashboard.Dashboard{*d}, int64(1), nil)

	page, err := svc.List(ctx, tenantID, ListFilter{Search: "fin"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Items[0].Widgets)
	assert.Equal(t, 1, page.TotalPages)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("rename and replace advance the version once", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(d *dashboard.Dashboard) bool {
			return d.Version == 2 && d.Name == "Novo" && len(d.Document.Widgets) == 1
		}), 1).Return(nil)

		name := "Novo"
		resp, err := svc.Update(ctx, tenantID, d.ID, UpdateDashboardRequest{
			Name:     &name,
			Document: json.RawMessage(`{"widgets": [{"type": "text", "options": {"content": "oi"}}]}`),
			Version:  1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Version)
		assert.Equal(t, "text-1", resp.Document.Widgets[0].ID)
		repo.AssertExpectations(t)
	})

	t.Run("stale version", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		d.Version = 4
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)

		name := "Novo"
		_, err := svc.Update(ctx, tenantID, d.ID, UpdateDashboardRequest{Name: &name, Version: 3})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nothing to change", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)

		_, err := svc.Update(ctx, tenantID, d.ID, UpdateDashboardRequest{Version: 1})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestService_ApplyPatch(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("applies the batch", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)
		repo.On("Update", ctx, mock.Anything, 1).Return(nil)

		resp, err := svc.ApplyPatch(ctx, tenantID, d.ID, PatchRequest{
			Version: 1,
			Patches: []dashboard.Patch{
				{Op: dashboard.OpUpdateWidgetAttrs, WidgetID: "total", Attrs: map[string]any{"title": "Total a receber"}},
				{Op: dashboard.OpRemoveWidget, WidgetID: "ultimas"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Version)
		assert.Equal(t, "Total a receber", resp.Document.Widgets[0].Title)
		assert.Equal(t, []string{"total", "mensal"}, resp.Document.WidgetIDs())
	})

	t.Run("failing batch stores nothing", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)

		_, err := svc.ApplyPatch(ctx, tenantID, d.ID, PatchRequest{
			Version: 1,
			Patches: []dashboard.Patch{
				{Op: dashboard.OpRemoveWidget, WidgetID: "total"},
				{Op: dashboard.OpRemoveWidget, WidgetID: "nao-existe"},
			},
		})
		assert.ErrorIs(t, err, dashboard.ErrWidgetNotFound)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent writer wins", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, nil)
		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)
		repo.On("Update", ctx, mock.Anything, 1).Return(shared.ErrConcurrencyConflict)

		_, err := svc.ApplyPatch(ctx, tenantID, d.ID, PatchRequest{
			Version: 1,
			Patches: []dashboard.Patch{{Op: dashboard.OpRemoveWidget, WidgetID: "total"}},
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func expectFinanceData(src *MockRecordSource, tenantID uuid.UUID) {
	src.On("Aggregate", mock.Anything, tenantID, "financeiro", "contas_receber",
		mock.MatchedBy(func(q records.AggregateQuery) bool { return q.Dimension == "" })).
		Return([]records.AggregateRow{{Value: decimal.RequireFromString("1500.50")}}, nil)
	src.On("Aggregate", mock.Anything, tenantID, "financeiro", "contas_receber",
		mock.MatchedBy(func(q records.AggregateQuery) bool {
			return q.Dimension == "data_vencimento" && q.Bucket == records.BucketMonth && q.Aggregation == records.AggSum
		})).
		Return([]records.AggregateRow{
			{Key: "2025-01", Value: decimal.NewFromInt(700)},
			{Key: "2025-02", Value: decimal.NewFromInt(350)},
		}, nil)
	src.On("List", mock.Anything, tenantID, "financeiro", "contas_receber",
		shared.Filter{Page: 1, PageSize: 5, Filters: map[string]any{"data_vencimento__gte": "2025-01-01"}}).
		Return(shared.NewPaginated([]records.Row{
			{"id": 1, "descricao": "Mensalidade", "valor": decimal.NewFromInt(200), "status": "pendente"},
		}, 1, 1, 5), nil)
}

func TestService_Render(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockRepository)
	src := new(MockRecordSource)
	svc := NewService(repo, src, dashboard.NewRenderer(dashboard.WithConcurrency(2)), nil)

	d := storedDashboard(t, tenantID, financeDoc)
	repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)
	expectFinanceData(src, tenantID)

	rendered, err := svc.Render(ctx, tenantID, d.ID)
	require.NoError(t, err)
	assert.Zero(t, rendered.Errors)
	require.Len(t, rendered.Widgets, 3)

	assert.Equal(t, "KpiCard", rendered.Widgets[0].Component)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(rendered.Widgets[0].Data.(decimal.Decimal)))

	series := rendered.Widgets[1].Data.([]any)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-01", series[0].(map[string]any)["key"])

	rows := rendered.Widgets[2].Data.([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"descricao": "Mensalidade", "valor": decimal.NewFromInt(200)}, rows[0])
	src.AssertExpectations(t)
}

func TestService_RenderUnknownRef(t *testing.T) {
	svc := NewService(new(MockRepository), new(MockRecordSource), nil, nil).WithDatasets(nil)
	doc, err := dashboard.Parse([]byte(`{"widgets": [{"id": "x", "type": "pie", "dataSource": {"ref": "nada"}}]}`))
	require.NoError(t, err)

	rendered := svc.RenderDocument(context.Background(), uuid.New(), doc)
	assert.Equal(t, 1, rendered.Errors)
	assert.Contains(t, rendered.Widgets[0].Error, `"nada"`)
}

func TestService_ExportPDF(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("renders html and prints it", func(t *testing.T) {
		repo := new(MockRepository)
		src := new(MockRecordSource)
		pdf := &fakePDF{}
		svc := NewService(repo, src, nil, pdf)
		svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

		d := storedDashboard(t, tenantID, financeDoc)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)
		expectFinanceData(src, tenantID)

		data, name, err := svc.ExportPDF(ctx, tenantID, d.ID, true)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
		assert.Equal(t, "painel-financeiro-20250301.pdf", name)
		assert.Contains(t, pdf.html, "R$ 1.500,50")
		assert.Contains(t, pdf.html, "Mensalidade")
	})

	t.Run("export disabled", func(t *testing.T) {
		svc := NewService(new(MockRepository), new(MockRecordSource), nil, nil)
		_, _, err := svc.ExportPDF(ctx, tenantID, uuid.New(), false)
		assert.ErrorIs(t, err, ErrExportUnavailable)
	})

	t.Run("printer failure", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockRecordSource), nil, &fakePDF{err: export.ErrTimeout})
		d := storedDashboard(t, tenantID, `{"widgets": []}`)
		repo.On("FindByID", ctx, tenantID, d.ID).Return(d, nil)

		_, _, err := svc.ExportPDF(ctx, tenantID, d.ID, false)
		assert.ErrorIs(t, err, export.ErrTimeout)
	})
}

func TestService_Parse(t *testing.T) {
	svc := NewService(new(MockRepository), new(MockRecordSource), nil, nil)
	resp, err := svc.Parse([]byte("widgets:\n  - type: text\n    options:\n      content: oi\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"text-1"}, resp.WidgetIDs)
}
