package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"finreport_srv/internal/events"
	"finreport_srv/internal/models"
	"finreport_srv/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// Таймауты
	defaultGenerationTimeout = 30 * time.Second

	// Лимиты списка
	defaultListLimit = 20
	maxListLimit     = 100

	fileSuffixLength = 8
	maxKeyAttempts   = 3
)

var (
	// ErrInvalidRequest базовая ошибка для невалидного запроса генерации
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrInvalidFileName возвращается для имен файлов с путями или пустых
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrReportNotFound возвращается, если документа нет
	ErrReportNotFound = errors.New("report not found")
)

// ValidationError описывает отсутствующее или неверное поле запроса
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// ReportService интерфейс для работы с отчетами
type ReportService interface {
	GenerateReport(ctx context.Context, req models.ReportRequest) (*GenerateResult, error)
	OpenReport(ctx context.Context, fileName string) (*ReportFile, error)
	ListReports(ctx context.Context, params ListReportParams) (*ReportList, error)
}

// ReportFileStorage интерфейс для работы с файлами отчетов
type ReportFileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (*storage.FileMetadata, error)
	Locate(ctx context.Context, key string) (string, error)
	GenerateKey(doc ReportContent, ext string) string
}

// GenerateResult результат генерации документа
type GenerateResult struct {
	Report   *models.GeneratedReport
	FilePath string
}

// ReportFile открытый на чтение документ. Body закрывает вызывающий.
type ReportFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// ListReportParams параметры для получения списка отчетов
type ListReportParams struct {
	ClientName string `json:"client,omitempty"`
	Limit      int    `json:"limit"`
}

// ReportList результат получения списка отчетов
type ReportList struct {
	Reports []models.GeneratedReport `json:"reports"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
}

// ReportServiceImpl реализация сервиса отчетов
type ReportServiceImpl struct {
	repository  ReportRepository
	generator   ReportGenerator
	fileStorage ReportFileStorage
	publisher   events.Publisher
	logger      *logrus.Logger

	now func() time.Time
}

// NewReportService создает новый сервис отчетов
func NewReportService(
	repository ReportRepository,
	generator ReportGenerator,
	fileStorage ReportFileStorage,
	publisher events.Publisher,
	logger *logrus.Logger,
) ReportService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ReportServiceImpl{
		repository:  repository,
		generator:   generator,
		fileStorage: fileStorage,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateReport собирает документ, сохраняет его и записывает в журнал
func (s *ReportServiceImpl) GenerateReport(ctx context.Context, req models.ReportRequest) (*GenerateResult, error) {
	req.Normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	year := req.ReportYear
	if year == 0 {
		year = now.Year()
	}

	doc := ReportContent{
		ClientName:  req.ClientName,
		ReportType:  req.ReportType,
		ReportYear:  year,
		GeneratedAt: now,
	}

	logger := s.logger.WithFields(logrus.Fields{
		"client_name": doc.ClientName,
		"report_type": doc.ReportType,
		"report_year": doc.ReportYear,
		"request_id":  req.RequestID,
	})
	logger.Info("Генерация отчета")

	ctx, cancel := context.WithTimeout(ctx, defaultGenerationTimeout)
	defer cancel()

	content, err := s.generator.Generate(ctx, doc)
	if err != nil {
		logger.WithError(err).Error("Ошибка генерации документа")
		return nil, fmt.Errorf("generate document: %w", err)
	}
	size := int64(content.Len())

	key, err := s.newFileKey(ctx, doc)
	if err != nil {
		logger.WithError(err).Error("Ошибка выбора имени документа")
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.fileStorage.Save(ctx, key, bytes.NewReader(content.Bytes())); err != nil {
		logger.WithError(err).WithField("file_key", key).Error("Ошибка сохранения документа")
		return nil, fmt.Errorf("save document: %w", err)
	}

	record := &models.GeneratedReport{
		CreatedAt:   now,
		FileName:    key,
		FileKey:     key,
		ClientName:  doc.ClientName,
		ReportType:  doc.ReportType,
		ReportYear:  doc.ReportYear,
		RequestID:   req.RequestID,
		SizeBytes:   size,
		ContentType: s.generator.GetMimeType(),
	}

	if err := s.repository.Create(ctx, record); err != nil {
		logger.WithError(err).Error("Ошибка записи отчета в журнал")
		// Документ без записи в журнале не оставляем
		if delErr := s.fileStorage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.WithError(delErr).WithField("file_key", key).Warn("Не удалось удалить документ")
		}
		return nil, fmt.Errorf("record document: %w", err)
	}

	filePath, err := s.fileStorage.Locate(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("Не удалось определить расположение документа")
		filePath = key
	}

	s.publish(ctx, logger, record)

	logger.WithFields(logrus.Fields{
		"file_name": record.FileName,
		"size":      size,
	}).Info("Отчет сгенерирован успешно")

	return &GenerateResult{Report: record, FilePath: filePath}, nil
}

// newFileKey подбирает ключ, которого еще нет в хранилище
func (s *ReportServiceImpl) newFileKey(ctx context.Context, doc ReportContent) (string, error) {
	ext := s.generator.GetFileExtension()
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := s.fileStorage.GenerateKey(doc, ext)
		exists, err := s.fileStorage.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check file %s: %w", key, err)
		}
		if !exists {
			return key, nil
		}
		s.logger.WithField("file_key", key).Warn("Имя документа уже занято, выбираем другое")
	}
	return "", fmt.Errorf("no free file name after %d attempts", maxKeyAttempts)
}

// publish отправляет событие; ошибка публикации не отменяет генерацию
func (s *ReportServiceImpl) publish(ctx context.Context, logger *logrus.Entry, record *models.GeneratedReport) {
	event := events.ReportGenerated{
		FileName:    record.FileName,
		FileKey:     record.FileKey,
		ClientName:  record.ClientName,
		ReportType:  record.ReportType,
		ReportYear:  record.ReportYear,
		RequestID:   record.RequestID,
		SizeBytes:   record.SizeBytes,
		GeneratedAt: record.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).Warn("Ошибка публикации события")
	}
}

// OpenReport открывает сохраненный документ по имени файла
func (s *ReportServiceImpl) OpenReport(ctx context.Context, fileName string) (*ReportFile, error) {
	if err := validateFileName(fileName); err != nil {
		return nil, err
	}

	logger := s.logger.WithField("file_name", fileName)

	key, contentType := fileName, ""
	record, err := s.repository.GetByFileName(ctx, fileName)
	switch {
	case err == nil:
		key, contentType = record.FileKey, record.ContentType
	case errors.Is(err, ErrReportNotFound):
		// Файл мог попасть в каталог отчетов в обход журнала
	default:
		logger.WithError(err).Error("Ошибка поиска отчета в журнале")
		return nil, fmt.Errorf("find document: %w", err)
	}

	meta, err := s.fileStorage.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		logger.WithError(err).Error("Ошибка получения метаданных файла")
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if contentType == "" {
		contentType = s.detectedContentType(fileName, meta.ContentType)
	}

	body, err := s.fileStorage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		logger.WithError(err).Error("Ошибка получения файла из хранилища")
		return nil, fmt.Errorf("open document: %w", err)
	}

	return &ReportFile{
		Name:        fileName,
		ContentType: contentType,
		Size:        meta.Size,
		Body:        body,
	}, nil
}

// detectedContentType уточняет тип, определенный по сигнатуре.
// Сигнатура docx совпадает с zip: для своего расширения берется тип генератора.
func (s *ReportServiceImpl) detectedContentType(fileName, detected string) string {
	if strings.HasSuffix(fileName, "."+s.generator.GetFileExtension()) {
		return s.generator.GetMimeType()
	}
	if detected == "" {
		return storage.DefaultContentType
	}
	return detected
}

// ListReports получает последние записи журнала
func (s *ReportServiceImpl) ListReports(ctx context.Context, params ListReportParams) (*ReportList, error) {
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	reports, total, err := s.repository.List(ctx, params)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения списка отчетов")
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if reports == nil {
		reports = []models.GeneratedReport{}
	}

	return &ReportList{
		Reports: reports,
		Total:   total,
		Limit:   params.Limit,
	}, nil
}

func validateRequest(req models.ReportRequest) error {
	switch {
	case req.ClientName == "":
		return &ValidationError{Field: "clientName", Message: "Client name is required"}
	case req.ReportType == "":
		return &ValidationError{Field: "reportType", Message: "Report type is required"}
	case req.ReportYear < 0:
		return &ValidationError{Field: "reportYear", Message: "Report year must not be negative"}
	}
	return nil
}

// validateFileName допускает только имя файла без каталогов
func validateFileName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidFileName
	}
	return nil
}

// ReportFileStorageImpl реализация хранилища файлов отчетов
type ReportFileStorageImpl struct {
	storage storage.Storage
	logger  *logrus.Logger

	newSuffix func() string
}

// NewReportFileStorage создает новое хранилище файлов отчетов
func NewReportFileStorage(storage storage.Storage, logger *logrus.Logger) ReportFileStorage {
	return &ReportFileStorageImpl{
		storage:   storage,
		logger:    logger,
		newSuffix: randomSuffix,
	}
}

// Save сохраняет файл в хранилище
func (s *ReportFileStorageImpl) Save(ctx context.Context, key string, data io.Reader) error {
	return s.storage.Save(ctx, key, data)
}

// Get получает файл из хранилища
func (s *ReportFileStorageImpl) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.storage.Get(ctx, key)
}

// Delete удаляет файл из хранилища
func (s *ReportFileStorageImpl) Delete(ctx context.Context, key string) error {
	return s.storage.Delete(ctx, key)
}

// Exists проверяет, занят ли ключ
func (s *ReportFileStorageImpl) Exists(ctx context.Context, key string) (bool, error) {
	return s.storage.Exists(ctx, key)
}

// Stat возвращает размер и тип сохраненного файла
func (s *ReportFileStorageImpl) Stat(ctx context.Context, key string) (*storage.FileMetadata, error) {
	return s.storage.GetMetadata(ctx, key)
}

// Locate возвращает путь на диске или URL объекта
func (s *ReportFileStorageImpl) Locate(ctx context.Context, key string) (string, error) {
	return s.storage.GetURL(ctx, key)
}

// GenerateKey генерирует ключ для файла отчета
func (s *ReportFileStorageImpl) GenerateKey(doc ReportContent, ext string) string {
	return BuildFileName(doc.ClientName, doc.ReportType, doc.GeneratedAt, s.newSuffix(), ext)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:fileSuffixLength]
}

// NewReportServiceFromDB создает полностью настроенный сервис отчетов
func NewReportServiceFromDB(db *gorm.DB, store storage.Storage, publisher events.Publisher, logger *logrus.Logger) ReportService {
	repository := NewGormReportRepository(db, logger)
	generator := NewDocxReportGenerator(logger)
	fileStorage := NewReportFileStorage(store, logger)

	return NewReportService(repository, generator, fileStorage, publisher, logger)
}
