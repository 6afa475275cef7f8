package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// workspace owns one job's on-disk source file. The file name is
// derived from the job id so concurrent workers never collide, and
// cleanup removes every artifact regardless of how the run ended.
type workspace struct {
	dir     string
	srcPath string
}

// newWorkspace writes the (already sanitized) source under execDir and
// returns the workspace. Callers must invoke cleanup on every path.
func newWorkspace(execDir string, job Job, spec languageSpec) (*workspace, error) {
	if job.ID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if err := os.MkdirAll(execDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exec dir: %w", err)
	}

	base := job.ID
	if job.Language == "java" {
		base = javaClassName(job.ID)
	}
	srcPath := filepath.Join(execDir, base+"."+spec.Extension)

	code := prepareSource(job.Language, job.Code, base)
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("write source file: %w", err)
	}
	return &workspace{dir: execDir, srcPath: srcPath}, nil
}

// cleanup removes the source file plus any compile artifacts that share
// its base name (class files, binaries).
func (w *workspace) cleanup() {
	if w == nil || w.srcPath == "" {
		return
	}
	_ = os.Remove(w.srcPath)

	base := strings.TrimSuffix(filepath.Base(w.srcPath), filepath.Ext(w.srcPath))
	_ = os.Remove(filepath.Join(w.dir, base+".bin"))
	_ = os.Remove(filepath.Join(w.dir, base+".class"))
}
