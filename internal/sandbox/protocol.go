// Package sandbox defines the wire contract between the Runner Pool and a
// spawned sandbox child process: a single E2E_RESULT_JSON= line on stdout,
// exit-code conventions, and the sentinel matching used to classify a
// failure as infra-degraded rather than a genuine test failure.
package sandbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"strings"
)

const resultPrefix = "E2E_RESULT_JSON="

// Result is what a sandbox child reports about a single test execution. It
// mirrors the JSON shape emitted by both the Python and the Node bootstrap
// driver: {status, elapsed_ms, error_kind, error_message, final_url, title,
// artifacts, browser_infra_error}.
type Result struct {
	Status            string                 `json:"status"`
	ElapsedMs         int                    `json:"elapsed_ms"`
	ErrorKind         string                 `json:"error_kind,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`
	FinalURL          string                 `json:"final_url,omitempty"`
	Title             string                 `json:"title,omitempty"`
	Artifacts         map[string]interface{} `json:"artifacts,omitempty"`
	BrowserInfraError bool                   `json:"browser_infra_error,omitempty"`
}

var ErrNoResultLine = errors.New("sandbox child produced no result line")

// ParseResult scans stdout for the single E2E_RESULT_JSON= line. Any other
// stdout noise a misbehaving test prints is ignored; the contract only
// promises the last such line is authoritative, so ParseResult takes the
// last match rather than the first.
func ParseResult(stdout string) (*Result, error) {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, resultPrefix) {
			last = strings.TrimPrefix(line, resultPrefix)
		}
	}
	if last == "" {
		return nil, ErrNoResultLine
	}
	var r Result
	if err := json.Unmarshal([]byte(last), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// infraSentinels are substrings that indicate the browser or sandbox itself
// broke down mid-test, rather than the page under test failing an
// assertion. A run matching one of these is classified infra_degraded and
// does not count against the subject's fail streak.
var infraSentinels = []string{
	"target closed",
	"browser disconnected",
	"session closed",
	"page crashed",
	"navigation failed because browser has disconnected",
}

// IsInfraDegraded reports whether an error message (from a result's
// error_message or from raw stderr when no result line exists at all)
// matches a known infra-degraded sentinel.
func IsInfraDegraded(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range infraSentinels {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
