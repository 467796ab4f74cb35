package checks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/synthwatch/e2emon/internal/procexec"
	"github.com/synthwatch/e2emon/internal/sandbox"
	"github.com/synthwatch/e2emon/internal/store"
)

// BrowserChecker is the Domain Monitor's minimal headless-browser
// expectation check: it spawns the same JS sandbox driver used for tenant
// runs against a small internal script asserting a title substring,
// rather than an uploaded test file, so the built-in probes exercise the
// identical execution protocol as the External Runner.
type BrowserChecker struct {
	scratchDir string
	sandboxBin string
}

func NewBrowserChecker(scratchDir, sandboxBin string) *BrowserChecker {
	return &BrowserChecker{scratchDir: scratchDir, sandboxBin: sandboxBin}
}

func (c *BrowserChecker) Check(ctx context.Context, d *store.Domain) Observation {
	cfg := d.BrowserCheckCfg
	if len(cfg) == 0 {
		return Observation{Status: store.RunPass}
	}

	expectTitle, _ := cfg["expect_title_contains"].(string)
	timeoutSeconds := 15
	if t, ok := cfg["timeout_seconds"].(float64); ok && t > 0 {
		timeoutSeconds = int(t)
	}

	runDir := filepath.Join(c.scratchDir, "domain-browser-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return Observation{Status: store.RunFail, ErrorKind: "runner_protocol", ErrorMessage: err.Error()}
	}
	defer os.RemoveAll(runDir)

	scriptPath := filepath.Join(runDir, "expect.js")
	script := browserExpectationScript(expectTitle)
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return Observation{Status: store.RunFail, ErrorKind: "runner_protocol", ErrorMessage: err.Error()}
	}

	baseURL, _ := cfg["url"].(string)
	if baseURL == "" {
		baseURL = "https://" + d.Name
	}

	res := procexec.Spawn(ctx, c.sandboxBin, []string{
		"--test-file", scriptPath,
		"--base-url", baseURL,
		"--artifacts-dir", runDir,
		"--timeout-seconds", itoa(timeoutSeconds),
	}, procexec.Options{Timeout: time.Duration(timeoutSeconds+5) * time.Second, Grace: 5 * time.Second})

	if res.TimedOut {
		return Observation{Status: store.RunTimeout, ElapsedMs: int(res.DurationMs), ErrorKind: "timeout", ErrorMessage: "browser check timed out"}
	}

	parsed, err := sandbox.ParseResult(res.Stdout)
	if err != nil {
		if sandbox.IsInfraDegraded(res.Stderr) {
			return Observation{Status: store.RunInfraDegraded, ElapsedMs: int(res.DurationMs), ErrorKind: "runner_protocol", ErrorMessage: res.Stderr}
		}
		return Observation{Status: store.RunFail, ElapsedMs: int(res.DurationMs), ErrorKind: "runner_protocol", ErrorMessage: err.Error()}
	}

	obs := Observation{
		Status:       store.RunStatus(parsed.Status),
		ElapsedMs:    parsed.ElapsedMs,
		ErrorKind:    parsed.ErrorKind,
		ErrorMessage: parsed.ErrorMessage,
		Details:      map[string]interface{}{"final_url": parsed.FinalURL, "title": parsed.Title},
	}
	return obs
}

func browserExpectationScript(expectTitleContains string) string {
	payload, _ := json.Marshal(expectTitleContains)
	return `module.exports = async function run({ page, baseUrl }) {
  await page.goto(baseUrl, { waitUntil: "load" });
  const expect = ` + string(payload) + `;
  if (expect) {
    const title = await page.title();
    if (!title.includes(expect)) {
      throw new Error("title did not contain expected substring");
    }
  }
};
`
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
