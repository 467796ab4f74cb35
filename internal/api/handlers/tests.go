// Package handlers implements the Registry API's route handlers: the
// Test catalog's upload/metadata/source/disable/run-now surface.
package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/api/middleware"
	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/store"
)

const maxSourceBytes = 256 * 1024

type TestHandler struct {
	db        *store.DB
	artifacts *artifacts.Store
	logger    *zap.Logger
}

func NewTestHandler(db *store.DB, art *artifacts.Store, logger *zap.Logger) *TestHandler {
	return &TestHandler{db: db, artifacts: art, logger: logger}
}

func (h *TestHandler) Upload(c *gin.Context) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return
	}

	name := c.PostForm("name")
	baseURL := c.PostForm("base_url")
	kind := store.TestKind(c.PostForm("kind"))
	if name == "" || baseURL == "" || (kind != store.KindScriptPython && kind != store.KindScriptJS) {
		invalidRequest(c, "name, base_url and a valid kind are required")
		return
	}

	fileHeader, err := c.FormFile("source")
	if err != nil {
		invalidRequest(c, "source file is required")
		return
	}
	if fileHeader.Size > maxSourceBytes {
		invalidRequest(c, "source exceeds size cap")
		return
	}
	if !extensionAgrees(kind, fileHeader.Filename) {
		invalidRequest(c, "file extension does not match declared kind")
		return
	}

	intervalSeconds, ok := intFormValidated(c, "interval_seconds", 300, 60, 3600)
	if !ok {
		invalidRequest(c, "interval_seconds out of range")
		return
	}
	timeoutSeconds, ok := intFormValidated(c, "timeout_seconds", 30, 1, 300)
	if !ok {
		invalidRequest(c, "timeout_seconds out of range")
		return
	}
	downAfterFailures, ok := intFormValidated(c, "down_after_failures", 2, 1, 1000)
	if !ok {
		invalidRequest(c, "down_after_failures out of range")
		return
	}
	upAfterSuccesses, ok := intFormValidated(c, "up_after_successes", 2, 1, 1000)
	if !ok {
		invalidRequest(c, "up_after_successes out of range")
		return
	}
	jitterSeconds, ok := intFormValidated(c, "jitter_seconds", 0, 0, intervalSeconds)
	if !ok {
		invalidRequest(c, "jitter_seconds out of range")
		return
	}

	t := &store.Test{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Name:              name,
		BaseURL:           baseURL,
		Kind:              kind,
		Enabled:           true,
		IntervalSeconds:   intervalSeconds,
		TimeoutSeconds:    timeoutSeconds,
		DownAfterFailures: downAfterFailures,
		UpAfterSuccesses:  upAfterSuccesses,
		JitterSeconds:     jitterSeconds,
	}

	src, err := fileHeader.Open()
	if err != nil {
		internalError(c, "could not open upload")
		return
	}
	defer src.Close()

	blobRef, err := h.artifacts.PutSource(t.ID, io.LimitReader(src, maxSourceBytes+1))
	if err != nil {
		internalError(c, "could not persist source")
		return
	}
	t.SourceBlobRef = blobRef

	if err := h.db.CreateTest(t); err != nil {
		internalError(c, "could not create test")
		return
	}
	if err := h.db.CreateTestState(t.ID); err != nil {
		internalError(c, "could not initialize test state")
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *TestHandler) List(c *gin.Context) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return
	}

	var f store.TestFilters
	if v := c.Query("enabled"); v != "" {
		b := v == "true"
		f.Enabled = &b
	}
	f.BaseURLContains = c.Query("base_url")
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	tests, err := h.db.ListTests(tenantID, f)
	if err != nil {
		internalError(c, "could not list tests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests})
}

func (h *TestHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}
	t, err := h.db.GetTest(id, tenantID)
	if err == store.ErrNotFound {
		notFound(c, "test not found")
		return
	}
	if err != nil {
		internalError(c, "could not load test")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TestHandler) UpdateMetadata(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}

	existing, err := h.db.GetTest(id, tenantID)
	if err == store.ErrNotFound {
		notFound(c, "test not found")
		return
	}
	if err != nil {
		internalError(c, "could not load test")
		return
	}

	var body struct {
		Name              *string `json:"name"`
		BaseURL           *string `json:"base_url"`
		IntervalSeconds   *int    `json:"interval_seconds"`
		TimeoutSeconds    *int    `json:"timeout_seconds"`
		JitterSeconds     *int    `json:"jitter_seconds"`
		DownAfterFailures *int    `json:"down_after_failures"`
		UpAfterSuccesses  *int    `json:"up_after_successes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidRequest(c, "malformed request body")
		return
	}

	applyIfSet(body.Name, &existing.Name)
	applyIfSet(body.BaseURL, &existing.BaseURL)
	applyIfSet(body.IntervalSeconds, &existing.IntervalSeconds)
	applyIfSet(body.TimeoutSeconds, &existing.TimeoutSeconds)
	applyIfSet(body.JitterSeconds, &existing.JitterSeconds)
	applyIfSet(body.DownAfterFailures, &existing.DownAfterFailures)
	applyIfSet(body.UpAfterSuccesses, &existing.UpAfterSuccesses)

	if existing.IntervalSeconds < 60 || existing.IntervalSeconds > 3600 {
		invalidRequest(c, "interval_seconds out of range")
		return
	}
	if existing.TimeoutSeconds < 1 || existing.TimeoutSeconds > 300 {
		invalidRequest(c, "timeout_seconds out of range")
		return
	}

	if err := h.db.UpdateTestMetadata(existing); err != nil {
		internalError(c, "could not update test")
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (h *TestHandler) ReplaceSource(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}
	test, err := h.db.GetTest(id, tenantID)
	if err == store.ErrNotFound {
		notFound(c, "test not found")
		return
	}
	if err != nil {
		internalError(c, "could not load test")
		return
	}

	fileHeader, err := c.FormFile("source")
	if err != nil {
		invalidRequest(c, "source file is required")
		return
	}
	if fileHeader.Size > maxSourceBytes {
		invalidRequest(c, "source exceeds size cap")
		return
	}
	if !extensionAgrees(test.Kind, fileHeader.Filename) {
		invalidRequest(c, "file extension does not match declared kind")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		internalError(c, "could not open upload")
		return
	}
	defer src.Close()

	blobRef, err := h.artifacts.PutSource(test.ID, io.LimitReader(src, maxSourceBytes+1))
	if err != nil {
		internalError(c, "could not persist source")
		return
	}

	if err := h.db.ReplaceTestSource(id, tenantID, blobRef); err != nil {
		internalError(c, "could not replace source")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TestHandler) Disable(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}
	var body struct {
		Reason  string     `json:"reason"`
		UntilTS *time.Time `json:"until_ts"`
	}
	_ = c.ShouldBindJSON(&body)

	var reason *string
	if body.Reason != "" {
		reason = &body.Reason
	}
	if err := h.db.SetTestDisabled(id, tenantID, true, reason, body.UntilTS); err != nil {
		if err == store.ErrNotFound {
			notFound(c, "test not found")
			return
		}
		internalError(c, "could not disable test")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TestHandler) Enable(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}
	if err := h.db.SetTestDisabled(id, tenantID, false, nil, nil); err != nil {
		if err == store.ErrNotFound {
			notFound(c, "test not found")
			return
		}
		internalError(c, "could not enable test")
		return
	}
	c.Status(http.StatusNoContent)
}

// RunNow enqueues an immediate RunQueueEntry, coalescing with any already
// pending entry for the same test rather than piling up duplicates.
func (h *TestHandler) RunNow(c *gin.Context) {
	tenantID, id, ok := h.resolve(c)
	if !ok {
		return
	}
	if _, err := h.db.GetTest(id, tenantID); err == store.ErrNotFound {
		notFound(c, "test not found")
		return
	}

	pending, err := h.db.HasPendingEntry(id)
	if err != nil {
		internalError(c, "could not check pending runs")
		return
	}
	if pending {
		c.Status(http.StatusAccepted)
		return
	}

	if _, err := h.db.Enqueue(id, time.Now()); err != nil {
		internalError(c, "could not enqueue run")
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *TestHandler) resolve(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return uuid.UUID{}, uuid.UUID{}, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidRequest(c, "malformed test id")
		return uuid.UUID{}, uuid.UUID{}, false
	}
	return tenantID, id, true
}

func extensionAgrees(kind store.TestKind, filename string) bool {
	switch kind {
	case store.KindScriptPython:
		return hasExt(filename, ".py")
	case store.KindScriptJS:
		return hasExt(filename, ".js")
	default:
		return false
	}
}

func hasExt(filename, ext string) bool {
	if len(filename) < len(ext) {
		return false
	}
	return filename[len(filename)-len(ext):] == ext
}

// intFormValidated returns fallback when the form field is absent, or the
// parsed value when present, rejecting (ok=false) rather than clamping a
// value outside [min, max] or one that fails to parse.
func intFormValidated(c *gin.Context, key string, fallback, min, max int) (int, bool) {
	raw := c.PostForm(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}

func applyIfSet[T any](src *T, dst *T) {
	if src != nil {
		*dst = *src
	}
}
