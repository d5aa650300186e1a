package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	agentapp "github.com/erp/gestao/internal/application/agent"
	dashboardapp "github.com/erp/gestao/internal/application/dashboard"
	driveapp "github.com/erp/gestao/internal/application/drive"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testTenant = uuid.MustParse("7f3c1e2a-9b4d-4c61-8e0f-2a5b6c7d8e9f")

// withTenant stands in for the tenant middleware
func withTenant(tenant uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenant.String())
		c.Next()
	}
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), withTenant(testTenant))
	return r
}

func doRequest(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// decodeData re-marshals resp.Data into out
func decodeData(t *testing.T, data any, out any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// MockRecordService is a mock implementation of RecordService
type MockRecordService struct {
	mock.Mock
	registry *catalog.Registry
}

func (m *MockRecordService) Registry() *catalog.Registry {
	if m.registry == nil {
		m.registry = catalog.DefaultRegistry()
	}
	return m.registry
}

func (m *MockRecordService) List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error) {
	args := m.Called(ctx, tenantID, module, name, filter)
	return args.Get(0).(shared.Paginated[records.Row]), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, tenantID uuid.UUID, module, name, id string) (records.Row, error) {
	args := m.Called(ctx, tenantID, module, name, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(records.Row), args.Error(1)
}

func (m *MockRecordService) Create(ctx context.Context, tenantID uuid.UUID, module, name string, payload map[string]any) (records.Row, error) {
	args := m.Called(ctx, tenantID, module, name, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(records.Row), args.Error(1)
}

func (m *MockRecordService) Update(ctx context.Context, tenantID uuid.UUID, module, name, id string, payload map[string]any) (records.Row, error) {
	args := m.Called(ctx, tenantID, module, name, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(records.Row), args.Error(1)
}

func (m *MockRecordService) Delete(ctx context.Context, tenantID uuid.UUID, module, name, id string) error {
	args := m.Called(ctx, tenantID, module, name, id)
	return args.Error(0)
}

func (m *MockRecordService) Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error) {
	args := m.Called(ctx, tenantID, module, name, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]records.AggregateRow), args.Error(1)
}

// MockDashboardService is a mock implementation of DashboardService
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Create(ctx context.Context, tenantID uuid.UUID, req dashboardapp.CreateDashboardRequest) (*dashboardapp.DashboardResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboardapp.DashboardResponse), args.Error(1)
}

func (m *MockDashboardService) Get(ctx context.Context, tenantID, id uuid.UUID) (*dashboardapp.DashboardResponse, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboardapp.DashboardResponse), args.Error(1)
}

func (m *MockDashboardService) List(ctx context.Context, tenantID uuid.UUID, filter dashboardapp.ListFilter) (shared.Paginated[dashboardapp.DashboardListItem], error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(shared.Paginated[dashboardapp.DashboardListItem]), args.Error(1)
}

func (m *MockDashboardService) Update(ctx context.Context, tenantID, id uuid.UUID, req dashboardapp.UpdateDashboardRequest) (*dashboardapp.DashboardResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboardapp.DashboardResponse), args.Error(1)
}

func (m *MockDashboardService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockDashboardService) ApplyPatch(ctx context.Context, tenantID, id uuid.UUID, req dashboardapp.PatchRequest) (*dashboardapp.DashboardResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboardapp.DashboardResponse), args.Error(1)
}

func (m *MockDashboardService) Parse(data []byte) (*dashboardapp.ParseResponse, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboardapp.ParseResponse), args.Error(1)
}

func (m *MockDashboardService) Render(ctx context.Context, tenantID, id uuid.UUID) (*dashboard.RenderedDashboard, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.RenderedDashboard), args.Error(1)
}

func (m *MockDashboardService) ExportPDF(ctx context.Context, tenantID, id uuid.UUID, landscape bool) ([]byte, string, error) {
	args := m.Called(ctx, tenantID, id, landscape)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

// MockChatService is a mock implementation of ChatService
type MockChatService struct {
	mock.Mock
	limiter *ratelimit.Keyed
}

func (m *MockChatService) Chat(ctx context.Context, tenantID uuid.UUID, req agentapp.ChatRequest) (*agentapp.ChatResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agentapp.ChatResponse), args.Error(1)
}

func (m *MockChatService) Tools() []agentapp.ToolInfo {
	return []agentapp.ToolInfo{{Name: "list_records", Description: "Lista registros"}}
}

func (m *MockChatService) Providers() []string {
	return nil
}

func (m *MockChatService) Limiter() *ratelimit.Keyed {
	return m.limiter
}

func (m *MockChatService) DeleteConversation(ctx context.Context, tenantID uuid.UUID, conversationID string) error {
	args := m.Called(ctx, tenantID, conversationID)
	return args.Error(0)
}

// MockDriveService is a mock implementation of DriveService
type MockDriveService struct {
	mock.Mock
}

func (m *MockDriveService) Upload(ctx context.Context, tenantID uuid.UUID, req driveapp.UploadRequest) (*driveapp.FileResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driveapp.FileResponse), args.Error(1)
}

func (m *MockDriveService) List(ctx context.Context, tenantID uuid.UUID, filter driveapp.ListFilter) (*driveapp.FileListResponse, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driveapp.FileListResponse), args.Error(1)
}

func (m *MockDriveService) Download(ctx context.Context, tenantID, id uuid.UUID) (*driveapp.DownloadResponse, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driveapp.DownloadResponse), args.Error(1)
}

func (m *MockDriveService) Content(ctx context.Context, tenantID, id uuid.UUID) (*driveapp.ContentResponse, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driveapp.ContentResponse), args.Error(1)
}

func (m *MockDriveService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}
