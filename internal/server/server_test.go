package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"finreport_srv/internal/config"
	"finreport_srv/internal/database"
	"finreport_srv/internal/docx"
	"finreport_srv/internal/events"
	"finreport_srv/internal/models"
	"finreport_srv/internal/service"
	"finreport_srv/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService is a mock implementation of service.ReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) GenerateReport(ctx context.Context, req models.ReportRequest) (*service.GenerateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.GenerateResult)
	return res, args.Error(1)
}

func (m *MockReportService) OpenReport(ctx context.Context, fileName string) (*service.ReportFile, error) {
	args := m.Called(ctx, fileName)
	res, _ := args.Get(0).(*service.ReportFile)
	return res, args.Error(1)
}

func (m *MockReportService) ListReports(ctx context.Context, params service.ListReportParams) (*service.ReportList, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*service.ReportList)
	return res, args.Error(1)
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() config.Config {
	return config.Config{
		Server: config.Server{
			Address:        ":0",
			AllowedOrigins: []string{"https://localhost:3000", "http://localhost:3000"},
		},
	}
}

// setupTestServer собирает сервер на sqlite в памяти и временном каталоге
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	logger := setupTestLogger()

	db, err := database.NewDatabase(database.Config{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	root := t.TempDir()
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: root, CreateDirs: true}, logger)
	require.NoError(t, err)

	svc := service.NewReportServiceFromDB(db, storage.Wrap(local, logger), events.NoopPublisher{}, logger)
	return NewServer(testConfig(), svc, logger), root
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Financial report service is running", rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGenerateAndDownload(t *testing.T) {
	s, root := setupTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/generate-report",
		`{"clientName":"Acme Corporation","reportType":"P&L","reportYear":2024,"requestId":"r-42"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Report generated successfully", resp.Message)
	assert.True(t, strings.HasSuffix(resp.FileName, ".docx"))
	assert.Equal(t, filepath.Join(root, resp.FileName), resp.FilePath)

	written, err := os.ReadFile(resp.FilePath)
	require.NoError(t, err)

	paragraphs, err := docx.ParagraphsFromBytes(written)
	require.NoError(t, err)
	require.Len(t, paragraphs, 4)
	assert.Equal(t, "Financial Report: P&L", paragraphs[0])
	assert.Equal(t, "Client: Acme Corporation", paragraphs[1])
	assert.Equal(t, "Reporting Year: 2024", paragraphs[2])
	assert.True(t, strings.HasPrefix(paragraphs[3], "Generated on: "))

	dl := doRequest(s, http.MethodGet, "/api/download/"+resp.FileName, "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, docx.MimeType, dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, written, dl.Body.Bytes())
	assert.Equal(t, strconv.Itoa(len(written)), dl.Header().Get("Content-Length"))
}

func TestGenerateAndDownloadEscapedNames(t *testing.T) {
	for _, client := range []string{"100% Foods", "ООО Ромашка", "R&D #1", "50%2F50"} {
		t.Run(client, func(t *testing.T) {
			s, _ := setupTestServer(t)

			body, err := json.Marshal(models.ReportRequest{ClientName: client, ReportType: "P&L", ReportYear: 2024})
			require.NoError(t, err)
			rec := doRequest(s, http.MethodPost, "/api/generate-report", string(body))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp models.GenerateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			written, err := os.ReadFile(resp.FilePath)
			require.NoError(t, err)

			dl := doRequest(s, http.MethodGet, "/api/download/"+url.PathEscape(resp.FileName), "")
			require.Equal(t, http.StatusOK, dl.Code, dl.Body.String())
			assert.Equal(t, written, dl.Body.Bytes())

			disposition := dl.Header().Get("Content-Disposition")
			assert.Contains(t, disposition, "filename*=UTF-8''"+url.PathEscape(resp.FileName))
			for _, r := range disposition {
				assert.Less(t, r, rune(0x80), "non-ASCII byte in %q", disposition)
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t,
		`attachment; filename="FinancialReport_____P&L.docx"; filename*=UTF-8''FinancialReport_%D0%9E%D0%9E%D0%9E_P&L.docx`,
		contentDisposition("FinancialReport_ООО_P&L.docx"))
	assert.Equal(t,
		`attachment; filename="a_b_.docx"; filename*=UTF-8''a%22b%5C.docx`,
		contentDisposition(`a"b\.docx`))
}

func TestGenerateReportBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty body", body: "", message: "Request body is empty"},
		{name: "whitespace body", body: "  \n", message: "Request body is empty"},
		{name: "malformed", body: `{"clientName":`, message: "Invalid JSON payload"},
		{name: "wrong type", body: `{"clientName":"Acme","reportType":"P&L","reportYear":"2024"}`, message: "Invalid JSON payload"},
		{name: "missing client", body: `{"reportType":"P&L"}`, message: "Client name is required"},
		{name: "blank client", body: `{"clientName":"  ","reportType":"P&L"}`, message: "Client name is required"},
		{name: "blank type", body: `{"clientName":"Acme","reportType":""}`, message: "Report type is required"},
		{name: "negative year", body: `{"clientName":"Acme","reportType":"P&L","reportYear":-5}`, message: "Report year must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root := setupTestServer(t)

			req := httptest.NewRequest(http.MethodPost, "/api/generate-report", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, rec.Body.String())

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestGenerateReportInternalError(t *testing.T) {
	svc := new(MockReportService)
	svc.On("GenerateReport", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))
	s := NewServer(testConfig(), svc, setupTestLogger())

	rec := doRequest(s, http.MethodPost, "/api/generate-report", `{"clientName":"Acme","reportType":"P&L"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error generating report: disk full", rec.Body.String())
	svc.AssertExpectations(t)
}

func TestDownloadErrors(t *testing.T) {
	s, _ := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/download/", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/download/..", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/download/..%2Fconfig.yaml", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(s, http.MethodGet, "/api/download/FinancialReport_None.docx", "").Code)
}

func TestListReports(t *testing.T) {
	s, _ := setupTestServer(t)

	for _, client := range []string{"Acme", "Globex"} {
		rec := doRequest(s, http.MethodPost, "/api/generate-report",
			`{"clientName":"`+client+`","reportType":"P&L","reportYear":2023}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(s, http.MethodGet, "/api/reports?client=Acme", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list service.ReportList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "Acme", list.Reports[0].ClientName)

	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/reports?limit=abc", "").Code)
}

func TestCORS(t *testing.T) {
	s, _ := setupTestServer(t)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/generate-report", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Custom")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, preflight)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type, X-Custom", rec.Header().Get("Access-Control-Allow-Headers"))

	foreign := httptest.NewRequest(http.MethodGet, "/", nil)
	foreign.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, foreign)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerDebugMode(t *testing.T) {
	cfg := testConfig()
	assert.False(t, NewServer(cfg, new(MockReportService), setupTestLogger()).echo.Debug)

	cfg.Server.Debug = true
	assert.True(t, NewServer(cfg, new(MockReportService), setupTestLogger()).echo.Debug)
}
