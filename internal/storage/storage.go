package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"finreport_srv/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	// Права на каталоги и файлы локального хранилища
	DefaultDirPermissions  os.FileMode = 0o755
	DefaultFilePermissions os.FileMode = 0o644

	// DefaultContentType тип содержимого, если сигнатура не распознана
	DefaultContentType = "application/octet-stream"
)

var (
	// ErrNotFound возвращается, если объекта с таким ключом нет
	ErrNotFound = errors.New("file not found")
	// ErrInvalidKey возвращается для пустых и небезопасных ключей
	ErrInvalidKey = errors.New("invalid file key")
)

// Storage интерфейс для работы с хранилищем сгенерированных документов
type Storage interface {
	// Основные операции
	Save(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Метаданные
	GetMetadata(ctx context.Context, key string) (*FileMetadata, error)

	// Расположение файла (путь на диске или URL объекта)
	GetURL(ctx context.Context, key string) (string, error)

	ValidateKey(key string) error
}

// FileMetadata метаданные файла
type FileMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewStorageFromConfig создает хранилище из конфигурации и оборачивает его в middleware
func NewStorageFromConfig(cfg config.Config, logger *logrus.Logger) (Storage, error) {
	var (
		storage Storage
		err     error
	)

	switch cfg.Storage.Type {
	case StorageTypeS3:
		storage, err = NewS3Storage(S3Config{
			Region:         cfg.Storage.S3.Region,
			Bucket:         cfg.Storage.S3.Bucket,
			Prefix:         cfg.Storage.S3.Prefix,
			Endpoint:       cfg.Storage.S3.Endpoint,
			AccessKey:      cfg.Storage.S3.AccessKey,
			SecretKey:      cfg.Storage.S3.SecretKey,
			ForcePathStyle: cfg.Storage.S3.Endpoint != "",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create s3 storage: %w", err)
		}

	case StorageTypeLocal:
		root, absErr := cfg.StorageRoot()
		if absErr != nil {
			return nil, fmt.Errorf("resolve storage root: %w", absErr)
		}
		storage, err = NewLocalStorage(LocalConfig{
			BasePath:    root,
			Permissions: DefaultDirPermissions,
			CreateDirs:  true,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return Wrap(storage, logger), nil
}

// Wrap оборачивает хранилище в логирование и валидацию ключей
func Wrap(storage Storage, logger *logrus.Logger) Storage {
	if logger != nil {
		storage = NewLoggingMiddleware(storage, logger)
	}
	return NewValidationMiddleware(storage)
}
