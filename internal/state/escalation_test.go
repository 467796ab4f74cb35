package state

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/store"
)

func TestBuildEscalationPromptIncludesReadOnlyRules(t *testing.T) {
	prompt := buildEscalationPrompt(Alert{
		SubjectDisplayName: "checkout flow",
		SubjectKind:        store.SubjectTest,
		Transition:         "down",
	}, nil)

	if !strings.Contains(prompt, "checkout flow") {
		t.Fatal("expected the subject display name in the prompt")
	}
	if !strings.Contains(prompt, "must not mutate the target") {
		t.Fatal("expected the read-only rules to be embedded verbatim")
	}
	if !strings.Contains(prompt, "must not perform writes") {
		t.Fatal("expected the no-writes rule to be embedded")
	}
}

func TestBuildEscalationPromptIncludesRunDetails(t *testing.T) {
	kind := "assertion"
	msg := "button not found"
	prompt := buildEscalationPrompt(Alert{SubjectDisplayName: "x", Transition: "down"}, &store.Run{
		Status:       store.RunFail,
		ErrorKind:    &kind,
		ErrorMessage: &msg,
	})
	if !strings.Contains(prompt, "button not found") {
		t.Fatal("expected the failing run's error message in the prompt")
	}
}

type fakeEscalation struct {
	jobID      string
	pollCalls  int
	doneOnCall int
	output     string
}

func (f *fakeEscalation) CreateJob(ctx context.Context, prompt, model string) (string, error) {
	return f.jobID, nil
}

func (f *fakeEscalation) Poll(ctx context.Context, jobID string) (bool, string, error) {
	f.pollCalls++
	if f.pollCalls >= f.doneOnCall {
		return true, f.output, nil
	}
	return false, "", nil
}

func TestRunEscalationSendsHeartbeatOnCompletion(t *testing.T) {
	esc := &fakeEscalation{jobID: "job-1", doneOnCall: 2, output: "root cause: deploy regression"}
	fs := &fakeSink{}
	ts := NewTransportSink(fs, zap.NewNop())

	runEscalation(context.Background(), esc, ts, nil, "model-x", 5*time.Millisecond, time.Second, Alert{SubjectDisplayName: "checkout"}, nil)

	if len(fs.calls) != 1 {
		t.Fatalf("expected exactly one heartbeat sent on completion, got %d", len(fs.calls))
	}
	if !strings.Contains(fs.calls[0], "root cause: deploy regression") {
		t.Fatalf("expected the escalation output in the heartbeat text, got %q", fs.calls[0])
	}
}
