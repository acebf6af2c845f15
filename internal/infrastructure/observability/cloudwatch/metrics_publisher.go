package cloudwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/soc-portal/internal/application/dto"
)

// CloudWatch limit
const maxMetricsPerRequest = 1000

// Metric names written per report.
const (
	MetricChannelReliability     = "ChannelReliabilityPercentage"
	MetricChannelDowntimeMinutes = "ChannelDowntimeMinutes"
	MetricReliability            = "ReliabilityPercentage"
	MetricImpactMinutes          = "ReliabilityImpactMinutes"
	MetricSLABreach              = "SLABreach"
)

// metricsAPI is the subset of the CloudWatch client the publisher calls.
type metricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // e.g. "SOCPortal/Reliability"
	Region            string
	Endpoint          string // LocalStack override
	AccessKeyID       string
	SecretAccessKey   string
	DefaultDimensions map[string]string // added to every datum
	BufferSize        int
	FlushInterval     time.Duration
}

// MetricsPublisher implements port.ReliabilityPublisher on top of PutMetricData.
type MetricsPublisher struct {
	client            metricsAPI
	namespace         string
	defaultDimensions map[string]string

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	onError     func(error)
}

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg), nil
}

func newMetricsPublisher(client metricsAPI, cfg MetricsPublisherConfig) *MetricsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	p := &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		flushTicker:       time.NewTicker(cfg.FlushInterval),
		stopCh:            make(chan struct{}),
		onError:           func(error) {},
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// OnFlushError registers a callback for background flush failures.
func (p *MetricsPublisher) OnFlushError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn != nil {
		p.onError = fn
	}
}

// PublishReport buffers per-channel and overall datums for one report.
func (p *MetricsPublisher) PublishReport(ctx context.Context, report *dto.ReliabilityReportDTO) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	data := p.reportToData(report)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, data...)
	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered datums.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining datums.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	p.flushTicker.Stop()
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil {
				// retried on next tick
				p.mu.Lock()
				report := p.onError
				p.mu.Unlock()
				report(err)
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		chunk := p.buffer[i:end]
		err := withRetry(ctx, func() error {
			_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
				Namespace:  aws.String(p.namespace),
				MetricData: chunk,
			})
			return err
		})
		if err != nil {
			// keep the unsent tail for the next attempt
			p.buffer = append(p.buffer[:0], p.buffer[i:]...)
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	return nil
}

// reportToData converts a reliability report to CloudWatch datums.
func (p *MetricsPublisher) reportToData(report *dto.ReliabilityReportDTO) []types.MetricDatum {
	ts := report.GeneratedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	data := make([]types.MetricDatum, 0, 2*len(report.Channels)+3)

	for _, ch := range report.Channels {
		dims := p.dimensions("Range", report.Range, "Channel", ch.Channel)
		data = append(data,
			types.MetricDatum{
				MetricName: aws.String(MetricChannelReliability),
				Value:      aws.Float64(ch.ReliabilityPercentage),
				Unit:       types.StandardUnitPercent,
				Timestamp:  aws.Time(ts),
				Dimensions: dims,
			},
			types.MetricDatum{
				MetricName: aws.String(MetricChannelDowntimeMinutes),
				Value:      aws.Float64(float64(ch.Minutes)),
				Unit:       types.StandardUnitCount,
				Timestamp:  aws.Time(ts),
				Dimensions: dims,
			},
		)
	}

	breach := 0.0
	if !report.Summary.MeetsSLA {
		breach = 1
	}

	overall := p.dimensions("Range", report.Range)
	data = append(data,
		types.MetricDatum{
			MetricName: aws.String(MetricReliability),
			Value:      aws.Float64(report.ReliabilityPercentage),
			Unit:       types.StandardUnitPercent,
			Timestamp:  aws.Time(ts),
			Dimensions: overall,
		},
		types.MetricDatum{
			MetricName: aws.String(MetricImpactMinutes),
			Value:      aws.Float64(float64(report.TotalReliabilityImpactMinutes)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(ts),
			Dimensions: overall,
		},
		types.MetricDatum{
			MetricName: aws.String(MetricSLABreach),
			Value:      aws.Float64(breach),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(ts),
			Dimensions: overall,
		},
	)

	return data
}

// dimensions merges default dimensions with key/value pairs.
func (p *MetricsPublisher) dimensions(kv ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(p.defaultDimensions)+len(kv)/2)
	for key, value := range p.defaultDimensions {
		dims = append(dims, types.Dimension{Name: aws.String(key), Value: aws.String(value)})
	}
	for i := 0; i+1 < len(kv); i += 2 {
		dims = append(dims, types.Dimension{Name: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return dims
}
