package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// maxDatumsPerPut stays under the PutMetricData request limit
const maxDatumsPerPut = 500

// CloudWatchClient is the part of the CloudWatch API the sink uses
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchConfig configures a CloudWatchSink
type CloudWatchConfig struct {
	Namespace string
	// Prefix selects the metric families to publish; empty publishes all
	Prefix string
	// MinInterval is the shortest time between two published flushes
	MinInterval time.Duration
}

// CloudWatchSink publishes the service's Prometheus counters and histograms
// to CloudWatch. Lambda functions have no scrape endpoint, so each flush sends
// the increase since the previous successful flush.
type CloudWatchSink struct {
	client   CloudWatchClient
	gatherer prometheus.Gatherer
	config   CloudWatchConfig
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	published map[string]float64
	lastFlush time.Time
}

// NewCloudWatchSink creates a sink reading from gatherer
func NewCloudWatchSink(client CloudWatchClient, gatherer prometheus.Gatherer, cfg CloudWatchConfig, logger *zap.Logger) *CloudWatchSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchSink{
		client:    client,
		gatherer:  gatherer,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
		published: make(map[string]float64),
	}
}

type pendingDatum struct {
	key   string
	total float64
	datum types.MetricDatum
}

// Flush publishes every counter and histogram that moved since the last
// flush. Calls within MinInterval of the previous flush do nothing. A nil
// sink is a no-op.
func (s *CloudWatchSink) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastFlush.IsZero() && now.Sub(s.lastFlush) < s.config.MinInterval {
		return nil
	}

	families, err := s.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	pending := s.collect(families, now)
	s.lastFlush = now
	if len(pending) == 0 {
		return nil
	}

	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		data := make([]types.MetricDatum, 0, len(batch))
		for _, p := range batch {
			data = append(data, p.datum)
		}
		if _, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.config.Namespace),
			MetricData: data,
		}); err != nil {
			s.logger.Warn("Failed to publish metrics",
				zap.String("namespace", s.config.Namespace),
				zap.Int("datums", len(data)),
				zap.Error(err),
			)
			return fmt.Errorf("failed to put metric data: %w", err)
		}
		for _, p := range batch {
			s.published[p.key] = p.total
		}
	}
	return nil
}

func (s *CloudWatchSink) collect(families []*dto.MetricFamily, now time.Time) []pendingDatum {
	var out []pendingDatum
	for _, mf := range families {
		name := mf.GetName()
		if s.config.Prefix != "" && !strings.HasPrefix(name, s.config.Prefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			dims := dimensions(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out = s.appendDelta(out, name, dims, m.GetCounter().GetValue(), types.StandardUnitCount, now)
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				out = s.appendDelta(out, name+"_count", dims, float64(h.GetSampleCount()), types.StandardUnitCount, now)
				out = s.appendDelta(out, name+"_sum", dims, h.GetSampleSum(), unitOf(name), now)
			}
		}
	}
	return out
}

func (s *CloudWatchSink) appendDelta(out []pendingDatum, name string, dims []types.Dimension, total float64, unit types.StandardUnit, now time.Time) []pendingDatum {
	key := seriesKey(name, dims)
	delta := total - s.published[key]
	if delta <= 0 {
		return out
	}
	return append(out, pendingDatum{
		key:   key,
		total: total,
		datum: types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Value:      aws.Float64(delta),
			Unit:       unit,
			Timestamp:  aws.Time(now),
		},
	})
}

func dimensions(labels []*dto.LabelPair) []types.Dimension {
	out := make([]types.Dimension, 0, len(labels))
	for _, l := range labels {
		if l.GetValue() == "" {
			continue
		}
		out = append(out, types.Dimension{Name: aws.String(l.GetName()), Value: aws.String(l.GetValue())})
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].Name < *out[j].Name })
	return out
}

func seriesKey(name string, dims []types.Dimension) string {
	var b strings.Builder
	b.WriteString(name)
	for _, d := range dims {
		b.WriteByte('|')
		b.WriteString(*d.Name)
		b.WriteByte('=')
		b.WriteString(*d.Value)
	}
	return b.String()
}

func unitOf(name string) types.StandardUnit {
	if strings.HasSuffix(name, "_seconds") {
		return types.StandardUnitSeconds
	}
	return types.StandardUnitNone
}
