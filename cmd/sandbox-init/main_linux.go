//go:build linux

// sandbox-init applies resource limits and a seccomp filter to itself,
// then execs the target command. Running inside the child avoids the
// window where a parent-applied prlimit has not landed yet.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

type initSpec struct {
	Argv           []string `json:"argv"`
	MemoryLimitMb  int64    `json:"memory_limit_mb"`
	CPUSeconds     uint64   `json:"cpu_seconds"`
	DisableNetwork bool     `json:"disable_network"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sandbox-init:", err)
		os.Exit(125)
	}
}

func run() error {
	if len(os.Args) != 2 {
		return fmt.Errorf("usage: sandbox-init <base64-spec>")
	}
	raw, err := base64.StdEncoding.DecodeString(os.Args[1])
	if err != nil {
		return fmt.Errorf("decode spec: %w", err)
	}
	var spec initSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("parse spec: %w", err)
	}
	if len(spec.Argv) == 0 {
		return fmt.Errorf("argv is required")
	}

	if err := applyLimits(spec); err != nil {
		return err
	}
	if spec.DisableNetwork {
		if err := blockNetwork(); err != nil {
			return err
		}
	}

	path, err := exec.LookPath(spec.Argv[0])
	if err != nil {
		return fmt.Errorf("resolve %q: %w", spec.Argv[0], err)
	}
	return syscall.Exec(path, spec.Argv, os.Environ())
}

func applyLimits(spec initSpec) error {
	if spec.CPUSeconds > 0 {
		cpu := unix.Rlimit{Cur: spec.CPUSeconds, Max: spec.CPUSeconds}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &cpu); err != nil {
			return fmt.Errorf("set cpu limit: %w", err)
		}
	}
	if spec.MemoryLimitMb > 0 {
		bytes := uint64(spec.MemoryLimitMb) << 20
		as := unix.Rlimit{Cur: bytes, Max: bytes}
		if err := unix.Setrlimit(unix.RLIMIT_AS, &as); err != nil {
			return fmt.Errorf("set memory limit: %w", err)
		}
	}
	nproc := unix.Rlimit{Cur: 64, Max: 64}
	if err := unix.Setrlimit(unix.RLIMIT_NPROC, &nproc); err != nil {
		return fmt.Errorf("set nproc limit: %w", err)
	}
	return nil
}

// blockNetwork installs a seccomp filter that denies socket creation.
// Everything else is allowed; the point is no network, not a full
// syscall whitelist.
func blockNetwork() error {
	filter, err := seccomp.NewFilter(seccomp.ActAllow)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, name := range []string{"socket", "socketpair", "connect"} {
		sc, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			continue
		}
		if err := filter.AddRule(sc, seccomp.ActErrno.SetReturnCode(int16(unix.EPERM))); err != nil {
			return fmt.Errorf("add seccomp rule for %s: %w", name, err)
		}
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}
