package observability

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
)

// MetricPutter is the slice of the CloudWatch client the reporter needs.
type MetricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// StatsSource supplies per-namespace cache statistics.
type StatsSource interface {
	AllStats() map[string]cache.Statistics
}

// CloudWatchReporter periodically publishes cache hit rate and size to
// CloudWatch, one dimension per namespace.
type CloudWatchReporter struct {
	namespace string
	client    MetricPutter
	source    StatsSource
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewCloudWatchReporter creates a reporter. interval defaults to a minute.
func NewCloudWatchReporter(namespace string, client MetricPutter, source StatsSource, interval time.Duration, logger *zap.Logger) *CloudWatchReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchReporter{
		namespace: namespace,
		client:    client,
		source:    source,
		interval:  interval,
		logger:    logger.Named("cloudwatch"),
		now:       time.Now,
	}
}

// Run publishes on every tick until ctx ends.
func (r *CloudWatchReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Publish(ctx); err != nil {
				// Log error but don't fail the loop
				r.logger.Warn("Failed to send metrics", zap.Error(err))
			}
		}
	}
}

// Publish sends one snapshot of every namespace.
func (r *CloudWatchReporter) Publish(ctx context.Context) error {
	data := r.datums()
	if len(data) == 0 {
		return nil
	}
	// PutMetricData accepts at most 1000 datums per call.
	const maxPerCall = 1000
	for start := 0; start < len(data); start += maxPerCall {
		end := start + maxPerCall
		if end > len(data) {
			end = len(data)
		}
		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *CloudWatchReporter) datums() []types.MetricDatum {
	stats := r.source.AllStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := aws.Time(r.now())
	data := make([]types.MetricDatum, 0, len(names)*3)
	for _, name := range names {
		st := stats[name]
		dims := []types.Dimension{{Name: aws.String("Namespace"), Value: aws.String(name)}}
		data = append(data,
			types.MetricDatum{
				MetricName: aws.String("CacheHitRate"),
				Dimensions: dims,
				Value:      aws.Float64(st.HitRate),
				Unit:       types.StandardUnitPercent,
				Timestamp:  ts,
			},
			types.MetricDatum{
				MetricName: aws.String("CacheEntries"),
				Dimensions: dims,
				Value:      aws.Float64(float64(st.Size)),
				Unit:       types.StandardUnitCount,
				Timestamp:  ts,
			},
			types.MetricDatum{
				MetricName: aws.String("CacheRequests"),
				Dimensions: dims,
				Value:      aws.Float64(float64(st.TotalRequests)),
				Unit:       types.StandardUnitCount,
				Timestamp:  ts,
			},
		)
	}
	return data
}
