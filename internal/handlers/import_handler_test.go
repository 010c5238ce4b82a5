package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ingestion-service/internal/middleware"
	"ingestion-service/internal/models"
	"ingestion-service/internal/services"
)

// MockIngestionService is a mock implementation of IngestionService
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Validate(ctx context.Context, tenantID string, file io.Reader, filename string, categoryID uuid.UUID, dryRun bool) (*models.ValidationReport, error) {
	args := m.Called(ctx, tenantID, file, filename, categoryID, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationReport), args.Error(1)
}

func (m *MockIngestionService) Process(ctx context.Context, tenantID string, sessionID uuid.UUID, req models.ProcessRequest) error {
	args := m.Called(ctx, tenantID, sessionID, req)
	return args.Error(0)
}

func (m *MockIngestionService) Resume(ctx context.Context, tenantID string, sessionID uuid.UUID) error {
	args := m.Called(ctx, tenantID, sessionID)
	return args.Error(0)
}

func (m *MockIngestionService) Status(ctx context.Context, tenantID string, sessionID uuid.UUID) (*models.ImportSession, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportSession), args.Error(1)
}

func (m *MockIngestionService) List(ctx context.Context, tenantID string, page, limit int) ([]models.ImportSession, int64, error) {
	args := m.Called(ctx, tenantID, page, limit)
	return args.Get(0).([]models.ImportSession), args.Get(1).(int64), args.Error(2)
}

func setupRouter(service IngestionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(service)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.TenantMiddleware())
	imports := api.Group("/products/import")
	imports.GET("/template", handler.GetImportTemplate)
	imports.POST("/validate", handler.ValidateImport)
	imports.POST("/:sessionId/process", handler.ProcessImport)
	imports.GET("/:sessionId/status", handler.GetImportStatus)
	imports.POST("/:sessionId/resume", handler.ResumeImport)
	api.GET("/imports", handler.ListImports)
	return router
}

func multipartUpload(t *testing.T, categoryID string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,base_price,variant_quantity,image_urls\nSilk Saree,1499.00,25,https://cdn.example.com/a.jpg\n"))
	require.NoError(t, err)
	if categoryID != "" {
		require.NoError(t, writer.WriteField("categoryId", categoryID))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestGetImportTemplateJSON(t *testing.T) {
	router := setupRouter(new(MockIngestionService))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/template", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotNil(t, resp["template"])
}

func TestGetImportTemplateCSV(t *testing.T) {
	router := setupRouter(new(MockIngestionService))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/template?format=csv", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "products_import_template.csv")
	firstLine := strings.SplitN(w.Body.String(), "\n", 2)[0]
	assert.Contains(t, firstLine, "name")
	assert.Contains(t, firstLine, "image_urls")
}

func TestValidateImportRequiresTenant(t *testing.T) {
	router := setupRouter(new(MockIngestionService))

	body, contentType := multipartUpload(t, uuid.New().String())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/validate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidateImportSuccess(t *testing.T) {
	service := new(MockIngestionService)
	categoryID := uuid.New()
	service.On("Validate", mock.Anything, "tenant-1", mock.Anything, "products.csv", categoryID, false).
		Return(&models.ValidationReport{SessionID: uuid.New().String(), TotalRows: 1, ValidRows: 1}, nil)
	router := setupRouter(service)

	body, contentType := multipartUpload(t, categoryID.String())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/validate", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestValidateImportMissingFile(t *testing.T) {
	router := setupRouter(new(MockIngestionService))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/validate", strings.NewReader(""))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "FILE_REQUIRED", resp.Error.Code)
}

func TestValidateImportInvalidCategory(t *testing.T) {
	router := setupRouter(new(MockIngestionService))

	body, contentType := multipartUpload(t, "not-a-uuid")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/validate", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CATEGORY_ID", resp.Error.Code)
}

func TestProcessImportAccepted(t *testing.T) {
	service := new(MockIngestionService)
	sessionID := uuid.New()
	service.On("Process", mock.Anything, "tenant-1", sessionID, models.ProcessRequest{ProceedWithValidOnly: true}).Return(nil)
	router := setupRouter(service)

	payload, _ := json.Marshal(models.ProcessRequest{ProceedWithValidOnly: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/"+sessionID.String()+"/process", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	service.AssertExpectations(t)
}

func TestProcessImportErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{services.ErrSessionNotFound, http.StatusNotFound},
		{services.ErrSessionAlreadyProcessing, http.StatusConflict},
		{services.ErrValidationErrorsPresent, http.StatusConflict},
		{services.ErrNoValidRows, http.StatusBadRequest},
	}

	for _, tc := range cases {
		service := new(MockIngestionService)
		sessionID := uuid.New()
		service.On("Process", mock.Anything, "tenant-1", sessionID, models.ProcessRequest{}).Return(tc.err)
		router := setupRouter(service)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/"+sessionID.String()+"/process", nil)
		req.Header.Set("X-Tenant-ID", "tenant-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestGetImportStatus(t *testing.T) {
	service := new(MockIngestionService)
	sessionID := uuid.New()
	service.On("Status", mock.Anything, "tenant-1", sessionID).
		Return(&models.ImportSession{ID: sessionID, Status: models.SessionStatusProcessing, ProgressPercent: 40}, nil)
	router := setupRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/"+sessionID.String()+"/status", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                 `json:"success"`
		Data    models.ImportSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.SessionStatusProcessing, resp.Data.Status)
	assert.Equal(t, 40, resp.Data.ProgressPercent)
}

func TestResumeImportNotResumable(t *testing.T) {
	service := new(MockIngestionService)
	sessionID := uuid.New()
	service.On("Resume", mock.Anything, "tenant-1", sessionID).Return(services.ErrSessionNotResumable)
	router := setupRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/"+sessionID.String()+"/resume", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_RESUMABLE", resp.Error.Code)
}

func TestListImports(t *testing.T) {
	service := new(MockIngestionService)
	service.On("List", mock.Anything, "tenant-1", 1, 20).
		Return([]models.ImportSession{{ID: uuid.New()}}, int64(1), nil)
	router := setupRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total"])
	service.AssertExpectations(t)
}
