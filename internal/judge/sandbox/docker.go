package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

// dockerExecutor runs each job in a throwaway container. Strong
// isolation at the cost of container startup on every run.
type dockerExecutor struct {
	cfg Config
}

func newDockerExecutor(cfg Config) (Executor, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker binary not found: %w", err)
	}
	if err := os.MkdirAll(cfg.ExecDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exec dir: %w", err)
	}
	return &dockerExecutor{cfg: cfg}, nil
}

func (e *dockerExecutor) Run(ctx context.Context, job Job) (RawResult, error) {
	spec, err := lookupLanguage(job.Language)
	if err != nil {
		return RawResult{}, err
	}
	ws, err := newWorkspace(e.cfg.ExecDir, job, spec)
	if err != nil {
		return RawResult{}, err
	}
	defer ws.cleanup()

	image := spec.DockerImage
	if override, ok := e.cfg.DockerImages[job.Language]; ok {
		image = override
	}

	const box = "/box"
	boxSrc := box + "/" + strings.TrimPrefix(ws.srcPath, ws.dir+"/")

	if spec.CompileCmd != nil {
		compileRes, err := e.runContainer(ctx, job.ID+"-compile", image, spec.CompileCmd(box, boxSrc), "")
		if err != nil {
			return RawResult{}, err
		}
		if compileRes.ExitCode != 0 || compileRes.TimedOut {
			compileRes.CompileFailed = true
			return compileRes, nil
		}
	}

	runCmd, err := resolveRunCmd(spec, e.cfg.CommandOverrides[job.Language], box, boxSrc)
	if err != nil {
		return RawResult{}, err
	}
	return e.runContainer(ctx, job.ID+"-run", image, runCmd, job.Stdin)
}

func (e *dockerExecutor) runContainer(ctx context.Context, name, image string, argv []string, stdin string) (RawResult, error) {
	containerName := "eclipser-" + name

	dockerArgs := []string{
		"run", "--rm", "-i",
		"--name", containerName,
		"--memory", fmt.Sprintf("%dm", e.cfg.MemoryLimitMb),
		"--cpus", "1",
		"--pids-limit", "64",
		"-v", e.cfg.ExecDir + ":/box",
		"-w", "/box",
	}
	if e.cfg.DisableNetwork {
		dockerArgs = append(dockerArgs, "--network", "none")
	}
	dockerArgs = append(dockerArgs, image)
	dockerArgs = append(dockerArgs, argv...)

	cmd := exec.Command("docker", dockerArgs...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var overflowed atomic.Bool
	killContainer := func() {
		kill := exec.Command("docker", "kill", containerName)
		_ = kill.Run()
	}
	stdout := newCappedBuffer(e.cfg.OutputLimitBytes, func() {
		overflowed.Store(true)
		killContainer()
	})
	stderr := newCappedBuffer(e.cfg.OutputLimitBytes, func() {
		overflowed.Store(true)
		killContainer()
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RawResult{}, fmt.Errorf("start container: %w", err)
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(e.cfg.WallTimeout):
			timedOut.Store(true)
			killContainer()
		case <-ctx.Done():
			killContainer()
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
	res.ExitCode = exitCodeOf(cmd, waitErr)
	// docker kill surfaces as exit 137 (128+SIGKILL) from the container.
	if res.ExitCode == 137 {
		res.Signal = "killed"
	}
	return res, nil
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
