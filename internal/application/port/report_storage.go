package port

import (
	"context"
	"time"
)

// StoredObject описывает объект выгрузки в хранилище.
type StoredObject struct {
	Key          string
	URL          string
	SizeBytes    int64
	LastModified time.Time
}

// ReportStorage определяет интерфейс для хранения выгруженных отчетов.
type ReportStorage interface {
	// PutObject загружает объект и возвращает URL для чтения.
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)

	// GetObjectURL возвращает актуальный URL (presigned или публичный).
	GetObjectURL(ctx context.Context, key string) (string, error)

	// ListObjects возвращает объекты с префиксом, не больше limit.
	ListObjects(ctx context.Context, prefix string, limit int) ([]StoredObject, error)
}
