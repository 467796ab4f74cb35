package state

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/store"
)

func TestFormatAlertIncludesTransitionAndReason(t *testing.T) {
	now := time.Now()
	text := formatAlert(Alert{
		SubjectKind:        store.SubjectTest,
		SubjectDisplayName: "checkout flow",
		Transition:         "down",
		ReasonSnippet:      "assertion failed: button not found",
		LastOKTS:           &now,
		EvidenceLinks:      []string{"/artifacts/a/b/c/run.log"},
	})

	if !strings.HasPrefix(text, "[DOWN] test checkout flow") {
		t.Fatalf("expected header line, got %q", text)
	}
	if !strings.Contains(text, "assertion failed: button not found") {
		t.Fatalf("expected reason snippet in body, got %q", text)
	}
	if !strings.Contains(text, "/artifacts/a/b/c/run.log") {
		t.Fatalf("expected evidence link in body, got %q", text)
	}
}

func TestChunkAtLineBoundariesUnderLimitIsOneChunk(t *testing.T) {
	chunks := chunkAtLineBoundaries("short text", 4096)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("expected a single unmodified chunk, got %v", chunks)
	}
}

func TestChunkAtLineBoundariesSplitsOnNewlines(t *testing.T) {
	line := strings.Repeat("x", 50)
	text := strings.Join([]string{line, line, line}, "\n")

	chunks := chunkAtLineBoundaries(text, 110)
	for _, c := range chunks {
		if len(c) > 110 {
			t.Fatalf("chunk exceeds max size: %d > 110", len(c))
		}
	}
	joined := strings.Join(chunks, "\n")
	if strings.Count(joined, line) != 3 {
		t.Fatalf("expected all three lines preserved across chunks, got %q", joined)
	}
}

func TestChunkAtLineBoundariesHardCutsOverlongLine(t *testing.T) {
	line := strings.Repeat("y", 250)
	chunks := chunkAtLineBoundaries(line, 100)
	if len(chunks) < 3 {
		t.Fatalf("expected an overlong single line to be hard-cut into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("hard-cut chunk exceeds max size: %d > 100", len(c))
		}
	}
}

type fakeSink struct {
	calls []string
	fail  int
}

func (f *fakeSink) Send(ctx context.Context, text string) error {
	f.calls = append(f.calls, text)
	if f.fail > 0 {
		f.fail--
		return context.DeadlineExceeded
	}
	return nil
}

func TestSendWithRetryRetriesOnce(t *testing.T) {
	sink := &fakeSink{fail: 1}
	ts := NewTransportSink(sink, zap.NewNop())

	if err := ts.sendWithRetry(context.Background(), "hello"); err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if len(sink.calls) != 2 {
		t.Fatalf("expected exactly one retry (2 calls total), got %d", len(sink.calls))
	}
}
