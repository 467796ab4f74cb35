package runner

import (
	"testing"

	"github.com/synthwatch/e2emon/internal/procexec"
	"github.com/synthwatch/e2emon/internal/store"
)

func TestClassifyTimeout(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{TimedOut: true, DurationMs: 5000})

	if run.Status != store.RunTimeout {
		t.Fatalf("expected RunTimeout, got %s", run.Status)
	}
	if run.ErrorKind == nil || *run.ErrorKind != "timeout" {
		t.Fatalf("expected error_kind=timeout, got %v", run.ErrorKind)
	}
}

func TestClassifyNoResultLineIsProtocolFailure(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{Stdout: "nothing useful", DurationMs: 100})

	if run.Status != store.RunFail {
		t.Fatalf("expected RunFail when no result line and no infra sentinel, got %s", run.Status)
	}
	if run.ErrorKind == nil || *run.ErrorKind != "runner_protocol" {
		t.Fatalf("expected error_kind=runner_protocol, got %v", run.ErrorKind)
	}
}

func TestClassifyMissingResultWithInfraSentinelInStderr(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{Stdout: "", Stderr: "Error: browser disconnected", DurationMs: 100})

	if run.Status != store.RunInfraDegraded {
		t.Fatalf("expected RunInfraDegraded when stderr matches an infra sentinel, got %s", run.Status)
	}
}

func TestClassifyParsedPass(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{
		Stdout:     `E2E_RESULT_JSON={"status":"pass","elapsed_ms":120,"final_url":"https://x","title":"Home"}`,
		DurationMs: 120,
	})

	if run.Status != store.RunPass {
		t.Fatalf("expected RunPass, got %s", run.Status)
	}
	if run.FinalURL == nil || *run.FinalURL != "https://x" {
		t.Fatalf("expected final_url to be carried through, got %v", run.FinalURL)
	}
	if run.PageTitle == nil || *run.PageTitle != "Home" {
		t.Fatalf("expected title to be carried through, got %v", run.PageTitle)
	}
}

func TestClassifyParsedResultWithBrowserInfraErrorOverridesStatus(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{
		Stdout:     `E2E_RESULT_JSON={"status":"fail","elapsed_ms":50,"browser_infra_error":true}`,
		DurationMs: 50,
	})

	if run.Status != store.RunInfraDegraded {
		t.Fatalf("browser_infra_error=true should force RunInfraDegraded regardless of reported status, got %s", run.Status)
	}
}

func TestClassifyParsedFail(t *testing.T) {
	run := &store.Run{}
	classify(run, &procexec.Result{
		Stdout:     `E2E_RESULT_JSON={"status":"fail","elapsed_ms":50,"error_kind":"assertion","error_message":"button not found"}`,
		DurationMs: 50,
	})

	if run.Status != store.RunFail {
		t.Fatalf("expected RunFail, got %s", run.Status)
	}
	if run.ErrorMessage == nil || *run.ErrorMessage != "button not found" {
		t.Fatalf("expected error_message to be carried through, got %v", run.ErrorMessage)
	}
}
