package sandbox

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// languageSpec describes how to materialize and run source for one
// language. CompileCmd is nil for interpreted languages.
type languageSpec struct {
	Extension   string
	DockerImage string
	CompileCmd  func(dir, src string) []string
	RunCmd      func(dir, src string) []string
}

var languages = map[string]languageSpec{
	"python": {
		Extension:   "py",
		DockerImage: "python:3.11-alpine",
		RunCmd: func(dir, src string) []string {
			return []string{"python3", src}
		},
	},
	"javascript": {
		Extension:   "js",
		DockerImage: "node:20-alpine",
		RunCmd: func(dir, src string) []string {
			return []string{"node", src}
		},
	},
	"java": {
		Extension:   "java",
		DockerImage: "eclipse-temurin:21-jdk-alpine",
		CompileCmd: func(dir, src string) []string {
			return []string{"javac", "-d", dir, src}
		},
		RunCmd: func(dir, src string) []string {
			class := strings.TrimSuffix(filepath.Base(src), ".java")
			return []string{"java", "-cp", dir, class}
		},
	},
	"cpp": {
		Extension:   "cpp",
		DockerImage: "gcc:13",
		CompileCmd: func(dir, src string) []string {
			return []string{"g++", "-O2", "-o", binaryPath(dir, src), src}
		},
		RunCmd: func(dir, src string) []string {
			return []string{binaryPath(dir, src)}
		},
	},
	"c": {
		Extension:   "c",
		DockerImage: "gcc:13",
		CompileCmd: func(dir, src string) []string {
			return []string{"gcc", "-O2", "-o", binaryPath(dir, src), src}
		},
		RunCmd: func(dir, src string) []string {
			return []string{binaryPath(dir, src)}
		},
	},
}

func binaryPath(dir, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, base+".bin")
}

func lookupLanguage(name string) (languageSpec, error) {
	spec, ok := languages[name]
	if !ok {
		return languageSpec{}, fmt.Errorf("unsupported language %q", name)
	}
	return spec, nil
}

// resolveRunCmd applies a configured command override, parsed
// shell-style, with {file} expanded to the source path.
func resolveRunCmd(spec languageSpec, override, dir, src string) ([]string, error) {
	if override == "" {
		return spec.RunCmd(dir, src), nil
	}
	parts, err := shlex.Split(override)
	if err != nil {
		return nil, fmt.Errorf("parse command override: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command override")
	}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "{file}", src)
	}
	return parts, nil
}

var javaPublicClassRe = regexp.MustCompile(`public\s+class\s+(\w+)`)

// javaClassName derives a valid Java identifier from a job id.
func javaClassName(jobID string) string {
	return "Sub_" + strings.ReplaceAll(jobID, "-", "_")
}

// prepareSource rewrites the code so it matches the on-disk file name.
// Java requires the public class to match the file; everything else
// passes through unchanged.
func prepareSource(language, code, baseName string) string {
	if language != "java" {
		return code
	}
	if m := javaPublicClassRe.FindStringSubmatch(code); m != nil {
		return strings.Replace(code, m[0], "public class "+baseName, 1)
	}
	return code
}
