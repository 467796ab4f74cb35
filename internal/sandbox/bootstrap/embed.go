// Package bootstrap embeds the two driver scripts that actually speak the
// browser-automation libraries (Playwright for Python, Puppeteer for
// Node); the Go binary extracts one of them to a per-run scratch file and
// shells out to the matching interpreter, so the sandbox process never
// depends on a separately-deployed script tree.
package bootstrap

import _ "embed"

//go:embed python/driver.py
var PythonDriver []byte

//go:embed js/driver.js
var JSDriver []byte
