package port

import (
	"context"
	"time"
)

// ReportExportMetadata представляет метаданные выгруженного отчета.
type ReportExportMetadata struct {
	ID                    string
	Range                 string
	S3Key                 string
	URL                   string
	ContentType           string
	SizeBytes             int64
	ReliabilityPercentage float64
	WindowStart           time.Time
	WindowEnd             time.Time
	CreatedAt             time.Time
	ExpiresAt             time.Time
}

// ReportExportListQuery определяет параметры выборки списка выгрузок.
type ReportExportListQuery struct {
	Range  string
	Limit  int
	Cursor string
}

// ReportExportListPage содержит результат выборки и курсор следующей страницы.
type ReportExportListPage struct {
	Items      []ReportExportMetadata
	NextCursor string
}

// ReportExportRepository определяет интерфейс индекса выгрузок.
type ReportExportRepository interface {
	Put(ctx context.Context, record ReportExportMetadata) error
	List(ctx context.Context, query ReportExportListQuery) (ReportExportListPage, error)
}
