package domainmon

import (
	"context"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/checks"
	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/store"
)

func TestObserveReturnsCheckResultUnchanged(t *testing.T) {
	m := New(Config{}, nil, nil, nil, nil, nil, nil, zap.NewNop())

	want := checks.Observation{Status: store.RunFail, ErrorKind: "http_status", ErrorMessage: "503"}
	got := m.observe(context.Background(), "http", &store.Domain{Name: "example.com"}, func(ctx context.Context, d *store.Domain) checks.Observation {
		return want
	})

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected observe to pass the observation through unchanged, got %+v", got)
	}
}

func TestObserveRecordsMetricsWhenAttached(t *testing.T) {
	m := New(Config{}, nil, nil, nil, nil, nil, nil, zap.NewNop())
	m.WithMetrics(metrics.NewCollector(metrics.RemoteWriteConfig{}))

	obs := m.observe(context.Background(), "http", &store.Domain{Name: "example.com"}, func(ctx context.Context, d *store.Domain) checks.Observation {
		return checks.Observation{Status: store.RunPass}
	})

	if obs.Status != store.RunPass {
		t.Fatalf("expected pass observation, got %s", obs.Status)
	}
}

func TestNewDefaultsTickIntervalAndScanLimit(t *testing.T) {
	m := New(Config{}, nil, nil, nil, nil, nil, nil, zap.NewNop())
	if m.cfg.TickInterval <= 0 {
		t.Fatal("expected a positive default TickInterval")
	}
	if m.cfg.ScanLimit <= 0 {
		t.Fatal("expected a positive default ScanLimit")
	}
}
