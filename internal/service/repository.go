package service

import (
	"context"
	"errors"
	"strings"

	"finreport_srv/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReportRepository интерфейс для работы с журналом сгенерированных отчетов
type ReportRepository interface {
	Create(ctx context.Context, report *models.GeneratedReport) error
	GetByFileName(ctx context.Context, fileName string) (*models.GeneratedReport, error)
	List(ctx context.Context, params ListReportParams) ([]models.GeneratedReport, int64, error)
}

// GormReportRepository реализация репозитория отчетов для GORM
type GormReportRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewGormReportRepository создает новый GORM репозиторий отчетов
func NewGormReportRepository(db *gorm.DB, logger *logrus.Logger) ReportRepository {
	return &GormReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create сохраняет запись о документе
func (r *GormReportRepository) Create(ctx context.Context, report *models.GeneratedReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// GetByFileName получает запись по имени файла
func (r *GormReportRepository) GetByFileName(ctx context.Context, fileName string) (*models.GeneratedReport, error) {
	var report models.GeneratedReport
	err := r.db.WithContext(ctx).Where("file_name = ?", fileName).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// List возвращает последние записи, новые первыми
func (r *GormReportRepository) List(ctx context.Context, params ListReportParams) ([]models.GeneratedReport, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GeneratedReport{})

	if client := strings.TrimSpace(params.ClientName); client != "" {
		query = query.Where("client_name = ?", client)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.GeneratedReport
	err := query.Order("created_at DESC").Order("id DESC").Limit(params.Limit).Find(&reports).Error

	return reports, total, err
}
