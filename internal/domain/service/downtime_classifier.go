package service

import (
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// TypeBucket - результат агрегации одной корзины
type TypeBucket struct {
	Type          valueobject.DowntimeType
	Channels      []ChannelDuration
	TotalMinutes  int
	IncidentCount int
}

// Classification - четыре корзины и пропущенные строки
type Classification struct {
	Buckets []TypeBucket
	Skipped []*domainerr.DataError
}

// DowntimeClassifier раскладывает простои по корзинам PLANNED/UNPLANNED x FULL/PARTIAL (Domain Service)
type DowntimeClassifier struct {
	aggregator *DowntimeAggregator
}

// NewDowntimeClassifier создает новый DowntimeClassifier
func NewDowntimeClassifier(aggregator *DowntimeAggregator) *DowntimeClassifier {
	return &DowntimeClassifier{aggregator: aggregator}
}

// Classify прогоняет агрегатор отдельно по каждой корзине.
// Строки, не попавшие ни в одну корзину, возвращаются как DataError.
func (c *DowntimeClassifier) Classify(
	records []*entity.Downtime,
	window valueobject.TimeRange,
	now time.Time,
) Classification {
	var out Classification

	grouped := make(map[valueobject.DowntimeType][]*entity.Downtime, 4)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		bucket, ok := valueobject.ClassifyDowntime(string(rec.Modality()), string(rec.ImpactType()))
		if !ok {
			out.Skipped = append(out.Skipped, &domainerr.DataError{
				RecordID:   rec.ID(),
				IncidentID: rec.IncidentID(),
				Reason:     "unknown modality/impact type " + string(rec.Modality()) + "/" + string(rec.ImpactType()),
			})
			continue
		}
		grouped[bucket] = append(grouped[bucket], rec)
	}

	for _, bucket := range valueobject.AllDowntimeTypes() {
		res := c.aggregator.Aggregate(grouped[bucket], window, now)
		out.Skipped = append(out.Skipped, res.Skipped...)
		out.Buckets = append(out.Buckets, TypeBucket{
			Type:          bucket,
			Channels:      res.Channels,
			TotalMinutes:  res.TotalMinutes(),
			IncidentCount: res.IncidentCount,
		})
	}

	return out
}
