package sandbox

import (
	"strings"

	"eclipser/internal/contest/model"
)

var compileMarkers = []string{
	"compilation terminated",
	"SyntaxError",
	"error: cannot find symbol",
	"error: class",
	"javac",
}

var memoryMarkers = []string{
	"MemoryError",
	"OutOfMemoryError",
	"bad_alloc",
	"JavaScript heap out of memory",
}

// Classify maps a raw execution outcome and the per-test tally to a
// terminal verdict plus a human-readable error summary. The mapping is
// deterministic: the same raw result always yields the same verdict.
func Classify(raw RawResult, passed, total int) (model.SubmissionStatus, string) {
	if raw.TimedOut {
		return model.StatusTimeLimitExceeded, "time limit exceeded"
	}
	if raw.Truncated {
		return model.StatusError, "output limit exceeded"
	}
	if raw.CompileFailed {
		return model.StatusCompilationError, firstLines(raw.Stderr, 5)
	}
	if raw.ExitCode != 0 || raw.Signal != "" {
		if hasMarker(raw.Stderr, compileMarkers) {
			return model.StatusCompilationError, firstLines(raw.Stderr, 5)
		}
		if hasMarker(raw.Stderr, memoryMarkers) {
			return model.StatusRuntimeError, "memory limit exceeded"
		}
		return model.StatusRuntimeError, firstLines(raw.Stderr, 5)
	}
	if passed == total {
		return model.StatusAccepted, ""
	}
	return model.StatusWrongAnswer, ""
}

func hasMarker(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// OutputsMatch compares actual program output against the expected
// test-case output, ignoring trailing whitespace per line.
func OutputsMatch(actual, expected string) bool {
	return normalizeOutput(actual) == normalizeOutput(expected)
}

func normalizeOutput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimRight(joined, "\n")
}
