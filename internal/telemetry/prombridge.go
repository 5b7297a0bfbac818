package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PromBridge implements prometheus.Gatherer by translating every metric in
// a go-ethereum metrics.Registry into a Prometheus MetricFamily, so this
// engine's /metrics endpoint can be scraped without this module depending
// on a second, parallel metrics API for its own instrumentation.
type PromBridge struct {
	registry metrics.Registry
}

var _ prometheus.Gatherer = (*PromBridge)(nil)

// NewPromBridge wraps registry for Prometheus gathering.
func NewPromBridge(registry metrics.Registry) *PromBridge {
	return &PromBridge{registry: registry}
}

func (g *PromBridge) Gather() ([]*dto.MetricFamily, error) {
	var names []string
	g.registry.Each(func(name string, i interface{}) {
		names = append(names, name)
	})
	sort.Strings(names)

	mfs := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		mf, err := metricFamily(g.registry, name)
		switch {
		case errors.Is(err, errMetricSkip):
			continue
		case err != nil:
			return nil, err
		}
		mfs = append(mfs, mf)
	}
	return mfs, nil
}

var (
	errMetricSkip             = errors.New("metric skipped")
	errMetricTypeNotSupported = errors.New("metric type is not supported")
)

func ptrTo[T any](x T) *T { return &x }

func metricFamily(registry metrics.Registry, name string) (*dto.MetricFamily, error) {
	m := registry.Get(name)
	fam := strings.ReplaceAll(name, "/", "_")
	if m == nil {
		return nil, fmt.Errorf("%w: %q metric is nil", errMetricSkip, fam)
	}

	switch v := m.(type) {
	case metrics.Meter:
		snap := v.Snapshot()
		return &dto.MetricFamily{
			Name: &fam,
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: ptrTo(float64(snap.Count()))},
			}},
		}, nil

	case metrics.GaugeFloat64:
		return &dto.MetricFamily{
			Name: &fam,
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: ptrTo(v.Snapshot().Value())},
			}},
		}, nil

	case metrics.Gauge:
		return &dto.MetricFamily{
			Name: &fam,
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: ptrTo(float64(v.Snapshot().Value()))},
			}},
		}, nil

	case metrics.Timer:
		snap := v.Snapshot()
		if snap.Count() == 0 {
			return nil, fmt.Errorf("%w: %q timer has no data", errMetricSkip, fam)
		}
		quantiles := []float64{.5, .75, .95, .99}
		thresholds := snap.Percentiles(quantiles)
		dq := make([]*dto.Quantile, len(quantiles))
		for i, q := range quantiles {
			dq[i] = &dto.Quantile{
				Quantile: ptrTo(q),
				Value:    ptrTo(thresholds[i] / float64(time.Millisecond)),
			}
		}
		return &dto.MetricFamily{
			Name: &fam,
			Type: dto.MetricType_SUMMARY.Enum(),
			Metric: []*dto.Metric{{
				Summary: &dto.Summary{
					SampleCount: ptrTo(uint64(snap.Count())),
					SampleSum:   ptrTo(float64(snap.Sum())),
					Quantile:    dq,
				},
			}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: metric %q type %T", errMetricTypeNotSupported, fam, m)
	}
}
