package port

import (
	"context"

	"github.com/dreschagin/soc-portal/internal/application/dto"
)

// ReliabilityPublisher exports reliability reports to an external metrics platform.
type ReliabilityPublisher interface {
	// PublishReport converts the report into per-channel and overall datapoints.
	// Implementations may buffer; CloudWatch accepts at most 1000 datums per request.
	PublishReport(ctx context.Context, report *dto.ReliabilityReportDTO) error

	// Flush forces immediate publication of any buffered datapoints.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
