package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
)

// StartRemoteWrite runs the periodic gather-convert-batch-send loop against
// a Mimir-compatible remote write endpoint.
func (c *Collector) StartRemoteWrite(ctx context.Context) {
	if c.config.URL == "" {
		return
	}
	interval := time.Duration(c.config.FlushInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.writeToRemote()
		}
	}
}

func (c *Collector) writeToRemote() error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	samples := c.metricsToSamples(mfs)
	if len(samples) == 0 {
		return nil
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	for i := 0; i < len(samples); i += batchSize {
		end := i + batchSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := c.sendBatch(samples[i:end]); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}
	return nil
}

// metricsToSamples converts gathered families into remote write time
// series, keeping each metric's labels (including tenant_id). Routing by
// tenant happens in sendBatch, which sends series without a tenant_id label
// (e.g. domain monitor metrics) under a shared "system" tenant instead of
// dropping them.
func (c *Collector) metricsToSamples(mfs []*dto.MetricFamily) []prompb.TimeSeries {
	var samples []prompb.TimeSeries
	now := time.Now().UnixNano() / int64(time.Millisecond)

	for _, mf := range mfs {
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label)+1)
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
			}
			labels = append(labels, prompb.Label{Name: "__name__", Value: mf.GetName()})

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, sampleAt(labels, m.Counter.GetValue(), now))
			case dto.MetricType_GAUGE:
				samples = append(samples, sampleAt(labels, m.Gauge.GetValue(), now))
			case dto.MetricType_HISTOGRAM:
				hist := m.Histogram
				for _, bucket := range hist.Bucket {
					bucketLabels := append(append([]prompb.Label{}, labels...), prompb.Label{
						Name:  "le",
						Value: fmt.Sprintf("%g", bucket.GetUpperBound()),
					})
					samples = append(samples, sampleAt(bucketLabels, float64(bucket.GetCumulativeCount()), now))
				}
			default:
				continue
			}
		}
	}

	return samples
}

func sampleAt(labels []prompb.Label, value float64, tsMillis int64) prompb.TimeSeries {
	return prompb.TimeSeries{
		Labels:  labels,
		Samples: []prompb.Sample{{Value: value, Timestamp: tsMillis}},
	}
}

func (c *Collector) sendBatch(samples []prompb.TimeSeries) error {
	byTenant := make(map[string][]prompb.TimeSeries)
	for _, ts := range samples {
		tenantID := "system"
		for _, l := range ts.Labels {
			if l.Name == "tenant_id" && l.Value != "" {
				tenantID = l.Value
				break
			}
		}
		byTenant[tenantID] = append(byTenant[tenantID], ts)
	}

	for tenantID, tenantSamples := range byTenant {
		req := &prompb.WriteRequest{Timeseries: tenantSamples}
		data, err := req.Marshal()
		if err != nil {
			return err
		}
		compressed := snappy.Encode(nil, data)

		httpReq, err := http.NewRequest(http.MethodPost, c.config.URL+"/api/v1/push", bytes.NewReader(compressed))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/x-protobuf")
		httpReq.Header.Set("Content-Encoding", "snappy")
		if c.config.TenantHeader != "" {
			httpReq.Header.Set(c.config.TenantHeader, tenantID)
		}
		if c.config.AuthToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
		}

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(httpReq)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("remote write failed: %s", resp.Status)
		}
	}

	return nil
}
