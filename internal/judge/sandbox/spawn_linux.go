//go:build linux

package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// spawnExecutor runs jobs as direct child processes under rlimits. It
// is the low-overhead backend: weaker isolation than the container
// backend, acceptable when the host is already dedicated to judging.
type spawnExecutor struct {
	cfg Config
}

func newSpawnExecutor(cfg Config) (Executor, error) {
	if err := os.MkdirAll(cfg.ExecDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exec dir: %w", err)
	}
	return &spawnExecutor{cfg: cfg}, nil
}

// initSpec is the payload handed to the sandbox-init helper, base64
// encoded in argv so the job's stdin stays untouched.
type initSpec struct {
	Argv           []string `json:"argv"`
	MemoryLimitMb  int64    `json:"memory_limit_mb"`
	CPUSeconds     uint64   `json:"cpu_seconds"`
	DisableNetwork bool     `json:"disable_network"`
}

func (e *spawnExecutor) Run(ctx context.Context, job Job) (RawResult, error) {
	spec, err := lookupLanguage(job.Language)
	if err != nil {
		return RawResult{}, err
	}
	ws, err := newWorkspace(e.cfg.ExecDir, job, spec)
	if err != nil {
		return RawResult{}, err
	}
	defer ws.cleanup()

	if spec.CompileCmd != nil {
		compileRes, err := e.runProcess(ctx, spec.CompileCmd(ws.dir, ws.srcPath), "", false)
		if err != nil {
			return RawResult{}, err
		}
		if compileRes.ExitCode != 0 || compileRes.TimedOut {
			compileRes.CompileFailed = true
			return compileRes, nil
		}
	}

	runCmd, err := resolveRunCmd(spec, e.cfg.CommandOverrides[job.Language], ws.dir, ws.srcPath)
	if err != nil {
		return RawResult{}, err
	}
	if job.Language == "java" {
		runCmd = withJavaHeap(runCmd, e.cfg.MemoryLimitMb)
	}
	return e.runProcess(ctx, runCmd, job.Stdin, job.Language != "java")
}

// withJavaHeap caps the JVM heap instead of the address space; the JVM
// reserves far more virtual memory than it uses and dies under
// RLIMIT_AS.
func withJavaHeap(argv []string, limitMb int64) []string {
	out := make([]string, 0, len(argv)+1)
	out = append(out, argv[0], fmt.Sprintf("-Xmx%dm", limitMb))
	out = append(out, argv[1:]...)
	return out
}

func (e *spawnExecutor) runProcess(ctx context.Context, argv []string, stdin string, limitAddressSpace bool) (RawResult, error) {
	cpuSeconds := uint64(e.cfg.WallTimeout/time.Second) + 1

	useHelper := e.cfg.HelperPath != ""
	if useHelper {
		payload, err := json.Marshal(initSpec{
			Argv:           argv,
			MemoryLimitMb:  e.cfg.MemoryLimitMb,
			CPUSeconds:     cpuSeconds,
			DisableNetwork: e.cfg.DisableNetwork,
		})
		if err != nil {
			return RawResult{}, fmt.Errorf("encode init spec: %w", err)
		}
		argv = []string{e.cfg.HelperPath, base64.StdEncoding.EncodeToString(payload)}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = e.sysProcAttr(useHelper)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var overflowed atomic.Bool
	killGroup := func() {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}
	stdout := newCappedBuffer(e.cfg.OutputLimitBytes, func() {
		overflowed.Store(true)
		killGroup()
	})
	stderr := newCappedBuffer(e.cfg.OutputLimitBytes, func() {
		overflowed.Store(true)
		killGroup()
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RawResult{}, fmt.Errorf("start sandboxed process: %w", err)
	}

	if !useHelper {
		e.applyRlimits(cmd.Process.Pid, cpuSeconds, limitAddressSpace)
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(e.cfg.WallTimeout):
			timedOut.Store(true)
			killGroup()
		case <-ctx.Done():
			killGroup()
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := RawResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		WallTimeMs: time.Since(start).Milliseconds(),
		TimedOut:   timedOut.Load(),
		Truncated:  overflowed.Load(),
	}
	res.ExitCode, res.Signal = exitStatus(cmd, waitErr)
	res.MemoryPeakKB = peakMemoryKB(cmd)
	return res, nil
}

func (e *spawnExecutor) sysProcAttr(useHelper bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	// Without the helper's seccomp filter, cutting network access needs
	// an empty network namespace, which requires a user namespace for
	// unprivileged workers.
	if e.cfg.DisableNetwork && !useHelper {
		attr.Cloneflags = syscall.CLONE_NEWNET | syscall.CLONE_NEWUSER
		attr.GidMappingsEnableSetgroups = false
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}}
	}
	return attr
}

// applyRlimits sets limits from the parent right after start. The child
// may briefly run unconstrained; the wall timer still backstops it.
func (e *spawnExecutor) applyRlimits(pid int, cpuSeconds uint64, limitAddressSpace bool) {
	cpu := unix.Rlimit{Cur: cpuSeconds, Max: cpuSeconds}
	_ = unix.Prlimit(pid, unix.RLIMIT_CPU, &cpu, nil)

	if limitAddressSpace && e.cfg.MemoryLimitMb > 0 {
		bytes := uint64(e.cfg.MemoryLimitMb) << 20
		as := unix.Rlimit{Cur: bytes, Max: bytes}
		_ = unix.Prlimit(pid, unix.RLIMIT_AS, &as, nil)
	}

	nproc := unix.Rlimit{Cur: 64, Max: 64}
	_ = unix.Prlimit(pid, unix.RLIMIT_NPROC, &nproc, nil)
}

func exitStatus(cmd *exec.Cmd, waitErr error) (int, string) {
	state := cmd.ProcessState
	if state == nil {
		if waitErr != nil {
			return -1, ""
		}
		return 0, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return state.ExitCode(), ""
}

func peakMemoryKB(cmd *exec.Cmd) int64 {
	if cmd.ProcessState == nil {
		return 0
	}
	if ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok {
		return ru.Maxrss
	}
	return 0
}
