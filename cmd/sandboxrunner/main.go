// Command sandboxrunner is the Go wrapper the Runner Pool spawns as its
// sandbox child: it resolves the tenant test's kind from its file
// extension, extracts the matching embedded driver script, and execs the
// appropriate interpreter against it, passing the parsed flags on to the
// driver and inheriting the interpreter's exit code and stdout/stderr.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/synthwatch/e2emon/internal/sandbox/bootstrap"
)

func main() {
	os.Exit(run())
}

func run() int {
	testFile := flag.String("test-file", "", "path to the tenant's uploaded source")
	baseURL := flag.String("base-url", "", "base URL passed through to the entry point")
	artifactsDir := flag.String("artifacts-dir", "", "per-run artifacts directory")
	timeoutSeconds := flag.Int("timeout-seconds", 0, "per-operation timeout")
	flag.Parse()

	if *testFile == "" || *artifactsDir == "" || *timeoutSeconds <= 0 {
		fmt.Fprintln(os.Stderr, "sandboxrunner: --test-file, --artifacts-dir and --timeout-seconds are required")
		return 2
	}

	if err := os.MkdirAll(*artifactsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "sandboxrunner:", err)
		return 2
	}

	var (
		interpreter string
		driverName  string
		driverBody  []byte
	)
	switch strings.ToLower(filepath.Ext(*testFile)) {
	case ".py":
		interpreter = envOr("SANDBOX_PYTHON_INTERPRETER", "python3")
		driverName = "driver.py"
		driverBody = bootstrap.PythonDriver
	case ".js":
		interpreter = envOr("SANDBOX_NODE_INTERPRETER", "node")
		driverName = "driver.js"
		driverBody = bootstrap.JSDriver
	default:
		fmt.Fprintln(os.Stderr, "sandboxrunner: unrecognized source extension")
		return 2
	}

	driverPath := filepath.Join(*artifactsDir, driverName)
	if err := os.WriteFile(driverPath, driverBody, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "sandboxrunner:", err)
		return 2
	}
	defer os.Remove(driverPath)

	cmd := exec.Command(interpreter,
		driverPath,
		"--test-file", *testFile,
		"--base-url", *baseURL,
		"--artifacts-dir", *artifactsDir,
		"--timeout-seconds", fmt.Sprintf("%d", *timeoutSeconds),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "sandboxrunner:", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
