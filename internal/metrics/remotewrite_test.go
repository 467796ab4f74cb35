package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func strPtr(s string) *string { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestMetricsToSamplesCounter(t *testing.T) {
	c := &Collector{}
	mfs := []*dto.MetricFamily{
		{
			Name: strPtr("e2emon_runs_total"),
			Type: counterType(),
			Metric: []*dto.Metric{
				{
					Label: []*dto.LabelPair{
						{Name: strPtr("tenant_id"), Value: strPtr("tenant-a")},
					},
					Counter: &dto.Counter{Value: f64Ptr(7)},
				},
			},
		},
	}

	samples := c.metricsToSamples(mfs)
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Samples[0].Value != 7 {
		t.Fatalf("expected value 7, got %v", samples[0].Samples[0].Value)
	}

	var foundName, foundTenant bool
	for _, l := range samples[0].Labels {
		if l.Name == "__name__" && l.Value == "e2emon_runs_total" {
			foundName = true
		}
		if l.Name == "tenant_id" && l.Value == "tenant-a" {
			foundTenant = true
		}
	}
	if !foundName {
		t.Fatal("expected a __name__ label carrying the metric family name")
	}
	if !foundTenant {
		t.Fatal("expected the tenant_id label to be carried through")
	}
}

func TestMetricsToSamplesHistogramExpandsBuckets(t *testing.T) {
	c := &Collector{}
	mfs := []*dto.MetricFamily{
		{
			Name: strPtr("e2emon_run_duration_seconds"),
			Type: histogramType(),
			Metric: []*dto.Metric{
				{
					Histogram: &dto.Histogram{
						Bucket: []*dto.Bucket{
							{UpperBound: f64Ptr(0.5), CumulativeCount: u64Ptr(3)},
							{UpperBound: f64Ptr(1.0), CumulativeCount: u64Ptr(5)},
						},
					},
				},
			},
		},
	}

	samples := c.metricsToSamples(mfs)
	if len(samples) != 2 {
		t.Fatalf("expected one sample per bucket, got %d", len(samples))
	}
	for _, s := range samples {
		var hasLe bool
		for _, l := range s.Labels {
			if l.Name == "le" {
				hasLe = true
			}
		}
		if !hasLe {
			t.Fatal("expected every bucket sample to carry a le label")
		}
	}
}

func u64Ptr(v uint64) *uint64 { return &v }

func counterType() *dto.MetricType {
	t := dto.MetricType_COUNTER
	return &t
}

func histogramType() *dto.MetricType {
	t := dto.MetricType_HISTOGRAM
	return &t
}
