//go:build !linux

package sandbox

import "fmt"

func newSpawnExecutor(cfg Config) (Executor, error) {
	return nil, fmt.Errorf("spawn backend requires linux; use the docker backend")
}
