// Package artifacts implements the write-once blob store for run artifacts
// and uploaded test sources: a local filesystem tree exposing
// {put, read, enumerate} by path.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) sourcePath(testID uuid.UUID) string {
	return filepath.Join(s.root, "sources", testID.String(), "source")
}

// PutSource atomically swaps a test's source blob: write to a temp file in
// the same directory, then rename, so a replace-in-flight never exposes a
// half-written file to a concurrent Runner claim.
func (s *Store) PutSource(testID uuid.UUID, r io.Reader) (string, error) {
	dir := filepath.Dir(s.sourcePath(testID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "source-*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	dest := s.sourcePath(testID)
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *Store) ReadSource(blobRef string) (io.ReadCloser, error) {
	return os.Open(blobRef)
}

func (s *Store) RunDir(tenantID, testID, runID uuid.UUID) string {
	return filepath.Join(s.root, "artifacts", tenantID.String(), testID.String(), runID.String())
}

func (s *Store) EnsureRunDir(tenantID, testID, runID uuid.UUID) (string, error) {
	dir := s.RunDir(tenantID, testID, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) ArtifactPath(tenantID, testID, runID uuid.UUID, name string) string {
	return filepath.Join(s.RunDir(tenantID, testID, runID), name)
}

func (s *Store) ReadArtifact(tenantID, testID, runID uuid.UUID, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.ArtifactPath(tenantID, testID, runID, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact %q: %w", name, ErrMissing)
	}
	return f, err
}

// Enumerate lists artifact names present for a run; absence of any
// particular artifact is not itself a consistency violation.
func (s *Store) Enumerate(tenantID, testID, runID uuid.UUID) ([]string, error) {
	entries, err := os.ReadDir(s.RunDir(tenantID, testID, runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Prune removes the given run's artifact directory; it applies no age or
// retention check itself. Absence of artifacts is never treated as a
// Run-record violation.
func (s *Store) Prune(tenantID, testID, runID uuid.UUID) error {
	return os.RemoveAll(s.RunDir(tenantID, testID, runID))
}
