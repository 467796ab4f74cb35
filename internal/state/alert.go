package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/store"
)

const maxChunkSize = 4096

// Alert is the payload the State & Alert Engine hands to the Sink on an
// edge transition or heartbeat.
type Alert struct {
	TenantID           string
	SubjectKind        store.SubjectKind
	SubjectID          string
	SubjectDisplayName string
	Transition         string
	LastOKTS           *time.Time
	LastFailTS         *time.Time
	EvidenceLinks      []string
	ReasonSnippet      string
}

// Sink is the "send text message" primitive the alert transport
// collaborator exposes; text formatting and chunking are this package's
// responsibility, delivery itself is out of scope.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// TransportSink chunks outgoing text at line boundaries to respect the
// transport's 4096-character message cap, and retries once on transient
// failure. Delivery is best-effort: a persistent failure is logged, never
// propagated back into state-machine logic.
type TransportSink struct {
	transport Sink
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func NewTransportSink(transport Sink, logger *zap.Logger) *TransportSink {
	return &TransportSink{transport: transport, logger: logger}
}

// WithMetrics attaches a metrics collector. Nil-safe when unset.
func (s *TransportSink) WithMetrics(m *metrics.Collector) *TransportSink {
	s.metrics = m
	return s
}

func (s *TransportSink) SendAlert(ctx context.Context, a Alert) {
	s.dispatch(ctx, a.TenantID, a.Transition, formatAlert(a))
}

func (s *TransportSink) SendHeartbeat(ctx context.Context, text string) {
	s.dispatch(ctx, "", "heartbeat", text)
}

func (s *TransportSink) dispatch(ctx context.Context, tenantID, transition, text string) {
	for _, chunk := range chunkAtLineBoundaries(text, maxChunkSize) {
		start := time.Now()
		err := s.sendWithRetry(ctx, chunk)
		if s.metrics != nil {
			s.metrics.ObserveAlertDispatch(tenantID, transition, err == nil, time.Since(start).Seconds())
		}
		if err != nil {
			s.logger.Error("alert_transport delivery failed", zap.Error(err))
		}
	}
}

func (s *TransportSink) sendWithRetry(ctx context.Context, text string) error {
	err := s.transport.Send(ctx, text)
	if err == nil {
		return nil
	}
	return s.transport.Send(ctx, text)
}

func formatAlert(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s\n", strings.ToUpper(a.Transition), a.SubjectKind, a.SubjectDisplayName)
	if a.ReasonSnippet != "" {
		fmt.Fprintf(&b, "reason: %s\n", a.ReasonSnippet)
	}
	if a.LastOKTS != nil {
		fmt.Fprintf(&b, "last_ok: %s\n", a.LastOKTS.Format(time.RFC3339))
	}
	if a.LastFailTS != nil {
		fmt.Fprintf(&b, "last_fail: %s\n", a.LastFailTS.Format(time.RFC3339))
	}
	for _, link := range a.EvidenceLinks {
		fmt.Fprintf(&b, "evidence: %s\n", link)
	}
	return strings.TrimRight(b.String(), "\n")
}

// chunkAtLineBoundaries splits text into pieces no longer than max,
// breaking only at newlines so a single alert line is never split
// mid-sentence. A line itself longer than max is hard-cut as a last
// resort.
func chunkAtLineBoundaries(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	lines := strings.Split(text, "\n")
	var chunks []string
	var cur strings.Builder
	for _, line := range lines {
		if cur.Len() > 0 && cur.Len()+len(line)+1 > max {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
		for len(line) > max {
			chunks = append(chunks, line[:max])
			line = line[max:]
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	if cur.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
	}
	return chunks
}

func evidenceLink(root string, tenantID, testID, runID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", root, tenantID, testID, runID, name)
}
