package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finreport_srv/internal/config"
	"finreport_srv/internal/models"
	"finreport_srv/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const (
	serviceName       = "finreport-service"
	livenessMessage   = "Financial report service is running"
	maxRequestBody    = "1M"
	readHeaderTimeout = 10 * time.Second
)

// HTTPServer is the lifecycle surface used by the application module
type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// requestValidator adapts go-playground/validator to echo.Validator
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	service service.ReportService
	logger  *logrus.Logger
	address string
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, reportService service.ReportService, logger *logrus.Logger) *Server {
	e := echo.New()
	e.Debug = cfg.IsDevelopment()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
	e.Server.ReadHeaderTimeout = readHeaderTimeout

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	// Пустой AllowHeaders: echo отражает заголовки из preflight-запроса
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
	}))

	server := &Server{
		echo:    e,
		service: reportService,
		logger:  logger,
		address: cfg.Server.Address,
	}

	server.setupRoutes()
	return server
}

// requestLogger пишет строку лога на каждый запрос через logrus
func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("address", s.address).Info("Starting HTTP server")
	return s.echo.Start(s.address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.liveness)
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")
	{
		api.POST("/generate-report", s.generateReport, middleware.BodyLimit(maxRequestBody))
		api.GET("/download/:fileName", s.downloadReport)
		api.GET("/reports", s.listReports)
	}
}

// liveness answers with a fixed string
func (s *Server) liveness(c echo.Context) error {
	return c.String(http.StatusOK, livenessMessage)
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

// generateReport handles report generation
func (s *Server) generateReport(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return c.String(http.StatusBadRequest, "Failed to read request body")
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return c.String(http.StatusBadRequest, "Request body is empty")
	}

	var req models.ReportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.WithError(err).Debug("Failed to parse request")
		return c.String(http.StatusBadRequest, "Invalid JSON payload")
	}

	req.Normalize()
	if err := c.Validate(&req); err != nil {
		return c.String(http.StatusBadRequest, validationMessage(err))
	}

	result, err := s.service.GenerateReport(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.String(http.StatusBadRequest, err.Error())
		}
		s.logger.WithError(err).Error("Failed to generate report")
		return c.String(http.StatusInternalServerError, "Error generating report: "+err.Error())
	}

	return c.JSON(http.StatusOK, models.GenerateResponse{
		Success:  true,
		Message:  "Report generated successfully",
		FilePath: result.FilePath,
		FileName: result.Report.FileName,
	})
}

// downloadReport streams a previously generated document
func (s *Server) downloadReport(c echo.Context) error {
	fileName, err := pathParam(c, "fileName")
	if err != nil || fileName == "" {
		return c.String(http.StatusBadRequest, "File name is required")
	}

	file, err := s.service.OpenReport(c.Request().Context(), fileName)
	switch {
	case errors.Is(err, service.ErrInvalidFileName):
		return c.String(http.StatusBadRequest, "Invalid file name")
	case errors.Is(err, service.ErrReportNotFound):
		return c.String(http.StatusNotFound, "File not found")
	case err != nil:
		s.logger.WithError(err).WithField("file_name", fileName).Error("Failed to open report")
		return c.String(http.StatusInternalServerError, "Error reading report: "+err.Error())
	}
	defer file.Body.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, contentDisposition(file.Name))
	if file.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Size, 10))
	}
	return c.Stream(http.StatusOK, file.ContentType, file.Body)
}

// pathParam возвращает декодированный параметр пути.
// Echo сопоставляет маршрут по RawPath, если он задан, иначе по уже декодированному Path.
func pathParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

// contentDisposition собирает заголовок вложения: ASCII-имя в filename, исходное в filename*
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", fallback, url.PathEscape(name))
}

// listReports handles listing generated reports
func (s *Server) listReports(c echo.Context) error {
	params := service.ListReportParams{ClientName: c.QueryParam("client")}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid limit",
			})
		}
		params.Limit = limit
	}

	list, err := s.service.ListReports(c.Request().Context(), params)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list reports")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to list reports",
		})
	}

	return c.JSON(http.StatusOK, list)
}

// validationMessage переводит ошибки валидатора в текст ответа
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	switch verrs[0].Field() {
	case "ClientName":
		return "Client name is required"
	case "ReportType":
		return "Report type is required"
	case "ReportYear":
		return "Report year must not be negative"
	}
	return fmt.Sprintf("Invalid value for %s", verrs[0].Field())
}
