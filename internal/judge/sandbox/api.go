package sandbox

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultWallTimeout      = 10 * time.Second
	defaultMemoryLimitMb    = 256
	defaultOutputLimitBytes = 10 * 1024
)

// Job is one sandboxed execution request. Source is written to a temp
// file named by ID, so concurrent workers never collide.
type Job struct {
	ID       string
	Code     string
	Language string
	Stdin    string
}

// RawResult is the unclassified outcome of a sandboxed run.
type RawResult struct {
	ExitCode      int
	Signal        string
	Stdout        string
	Stderr        string
	WallTimeMs    int64
	MemoryPeakKB  int64
	TimedOut      bool
	Truncated     bool
	CompileFailed bool
}

// Executor runs one job under the configured resource ceilings and
// returns the raw outcome. Implementations must guarantee temp file
// removal on every exit path.
type Executor interface {
	Run(ctx context.Context, job Job) (RawResult, error)
}

// Config selects and tunes the execution backend.
type Config struct {
	// Backend is "docker" (container per run) or "spawn" (direct child
	// process with rlimits).
	Backend string `yaml:"backend"`

	// ExecDir is the directory holding per-job source files.
	ExecDir string `yaml:"execDir"`

	WallTimeout      time.Duration `yaml:"wallTimeout"`
	MemoryLimitMb    int64         `yaml:"memoryLimitMb"`
	OutputLimitBytes int64         `yaml:"outputLimitBytes"`

	// DisableNetwork cuts network access for the sandboxed process.
	// Docker uses --network none; spawn uses a network namespace.
	DisableNetwork bool `yaml:"disableNetwork"`

	// HelperPath points at the sandbox-init binary used by the spawn
	// backend to apply rlimits and the seccomp socket filter before
	// exec. Empty disables the helper.
	HelperPath string `yaml:"helperPath"`

	// DockerImages overrides the per-language container image.
	DockerImages map[string]string `yaml:"dockerImages"`

	// CommandOverrides replaces the run command for a language, parsed
	// shell-style. The placeholder {file} expands to the source path.
	CommandOverrides map[string]string `yaml:"commandOverrides"`
}

// SetDefaults fills zero values with production defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "spawn"
	}
	if c.ExecDir == "" {
		c.ExecDir = "/tmp/eclipser-exec"
	}
	if c.WallTimeout == 0 {
		c.WallTimeout = defaultWallTimeout
	}
	if c.MemoryLimitMb == 0 {
		c.MemoryLimitMb = defaultMemoryLimitMb
	}
	if c.OutputLimitBytes == 0 {
		c.OutputLimitBytes = defaultOutputLimitBytes
	}
}

// NewExecutor builds the backend selected by cfg.Backend.
func NewExecutor(cfg Config) (Executor, error) {
	cfg.SetDefaults()
	switch cfg.Backend {
	case "docker":
		return newDockerExecutor(cfg)
	case "spawn":
		return newSpawnExecutor(cfg)
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Backend)
	}
}
