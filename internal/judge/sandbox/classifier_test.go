package sandbox

import (
	"testing"

	"eclipser/internal/contest/model"
)

func TestClassifyVerdicts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		raw    RawResult
		passed int
		total  int
		want   model.SubmissionStatus
	}{
		{"timeout wins over exit code", RawResult{TimedOut: true, ExitCode: -1, Signal: "killed"}, 0, 1, model.StatusTimeLimitExceeded},
		{"output overflow is an error", RawResult{Truncated: true, ExitCode: 0}, 1, 1, model.StatusError},
		{"compile failure", RawResult{CompileFailed: true, ExitCode: 1, Stderr: "error: expected ';'"}, 0, 1, model.StatusCompilationError},
		{"compile marker in stderr", RawResult{ExitCode: 1, Stderr: "foo.c:3: fatal error\ncompilation terminated."}, 0, 1, model.StatusCompilationError},
		{"plain nonzero exit", RawResult{ExitCode: 1, Stderr: "panic"}, 0, 1, model.StatusRuntimeError},
		{"killed by signal", RawResult{ExitCode: -1, Signal: "segmentation fault"}, 0, 1, model.StatusRuntimeError},
		{"memory marker", RawResult{ExitCode: 1, Stderr: "MemoryError"}, 0, 1, model.StatusRuntimeError},
		{"all tests pass", RawResult{ExitCode: 0}, 3, 3, model.StatusAccepted},
		{"zero tests and clean exit", RawResult{ExitCode: 0}, 0, 0, model.StatusAccepted},
		{"some tests fail", RawResult{ExitCode: 0}, 2, 3, model.StatusWrongAnswer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Classify(tc.raw, tc.passed, tc.total)
			if got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()
	raw := RawResult{ExitCode: 1, Stderr: "Traceback (most recent call last):\nValueError"}
	first, firstMsg := Classify(raw, 0, 2)
	for i := 0; i < 100; i++ {
		got, msg := Classify(raw, 0, 2)
		if got != first || msg != firstMsg {
			t.Fatalf("classification changed between runs: %s vs %s", got, first)
		}
	}
}

func TestClassifyMemoryMessage(t *testing.T) {
	t.Parallel()
	_, msg := Classify(RawResult{ExitCode: 1, Stderr: "java.lang.OutOfMemoryError: Java heap space"}, 0, 1)
	if msg != "memory limit exceeded" {
		t.Fatalf("expected memory limit message, got %q", msg)
	}
}

func TestOutputsMatch(t *testing.T) {
	t.Parallel()
	cases := []struct {
		actual, expected string
		want             bool
	}{
		{"42\n", "42", true},
		{"42  \n", "42", true},
		{"1\r\n2\r\n", "1\n2", true},
		{"42", "43", false},
		{"a\nb", "a\n\nb", false},
		{"", "", true},
	}
	for _, tc := range cases {
		if got := OutputsMatch(tc.actual, tc.expected); got != tc.want {
			t.Fatalf("OutputsMatch(%q, %q) = %v, want %v", tc.actual, tc.expected, got, tc.want)
		}
	}
}
