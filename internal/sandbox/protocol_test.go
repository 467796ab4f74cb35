package sandbox

import "testing"

func TestParseResultTakesLastLine(t *testing.T) {
	stdout := "some noise\n" +
		`E2E_RESULT_JSON={"status":"fail","elapsed_ms":10}` + "\n" +
		"more noise\n" +
		`E2E_RESULT_JSON={"status":"pass","elapsed_ms":42}` + "\n"

	res, err := ParseResult(stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "pass" || res.ElapsedMs != 42 {
		t.Fatalf("expected the last result line to win, got %+v", res)
	}
}

func TestParseResultNoLineIsError(t *testing.T) {
	_, err := ParseResult("nothing relevant here\n")
	if err != ErrNoResultLine {
		t.Fatalf("expected ErrNoResultLine, got %v", err)
	}
}

func TestParseResultMalformedJSON(t *testing.T) {
	_, err := ParseResult("E2E_RESULT_JSON={not json}\n")
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestIsInfraDegradedMatchesKnownSentinels(t *testing.T) {
	cases := []string{
		"Target closed unexpectedly",
		"browser disconnected during navigation",
		"Session Closed",
		"the page crashed mid-test",
	}
	for _, c := range cases {
		if !IsInfraDegraded(c) {
			t.Fatalf("expected %q to be classified infra_degraded", c)
		}
	}
}

func TestIsInfraDegradedIgnoresGenuineFailures(t *testing.T) {
	if IsInfraDegraded("assertion failed: expected title to contain Example") {
		t.Fatal("a genuine assertion failure must not be classified infra_degraded")
	}
}
