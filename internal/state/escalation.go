package state

import (
	"context"
	"fmt"
	"time"

	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/store"
)

// Escalation is the "dispatcher" collaborator's interface, modeled on the
// same create/poll/fetch shape as a job-based LLM provider plugin: a job is
// created with a prompt and a model identifier, then polled until it
// reports done.
type Escalation interface {
	CreateJob(ctx context.Context, prompt, model string) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (done bool, output string, err error)
}

// readOnlyRules are embedded verbatim in every escalation prompt: the
// agent must not mutate the target, must not authenticate with real
// credentials, must not perform writes, and must produce only
// investigative observations.
const readOnlyRules = `Operational rules (must be followed exactly):
- You must not mutate the target in any way.
- You must not authenticate with real credentials.
- You must not perform writes of any kind against the target or any system it depends on.
- You must produce only investigative observations; do not attempt remediation.`

func buildEscalationPrompt(a Alert, run *store.Run) string {
	prompt := fmt.Sprintf("Subject %s (%s) transitioned to %s.\n", a.SubjectDisplayName, a.SubjectKind, a.Transition)
	if run != nil {
		errKind := ""
		if run.ErrorKind != nil {
			errKind = *run.ErrorKind
		}
		errMsg := ""
		if run.ErrorMessage != nil {
			errMsg = *run.ErrorMessage
		}
		prompt += fmt.Sprintf("Failing run: status=%s error_kind=%s error_message=%s\n", run.Status, errKind, errMsg)
	}
	prompt += "\n" + readOnlyRules
	return prompt
}

// runEscalation creates a job for the given alert and polls until it
// completes or the configured timeout elapses, forwarding the final output
// text to the Sink. It never blocks state-machine persistence: callers run
// it in its own goroutine.
func runEscalation(ctx context.Context, esc Escalation, sink *TransportSink, m *metrics.Collector, model string, pollInterval, pollTimeout time.Duration, a Alert, run *store.Run) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	jobID, err := esc.CreateJob(ctx, buildEscalationPrompt(a, run), model)
	if err != nil {
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done, output, err := esc.Poll(ctx, jobID)
			if err != nil {
				return
			}
			if done {
				if m != nil {
					m.ObserveEscalationDuration(a.TenantID, time.Since(started).Seconds())
				}
				sink.SendHeartbeat(ctx, fmt.Sprintf("[ESCALATION] %s: %s", a.SubjectDisplayName, output))
				return
			}
		}
	}
}
