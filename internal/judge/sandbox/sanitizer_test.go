package sandbox

import (
	"strings"
	"testing"
)

func TestSanitizePython(t *testing.T) {
	t.Parallel()
	code := "import os\nimport math\nprint(math.pi)\n"
	out, replaced := Sanitize("python", code)
	if replaced != 1 {
		t.Fatalf("expected 1 replacement, got %d", replaced)
	}
	if strings.Contains(out, "import os") {
		t.Fatalf("import os survived sanitization: %q", out)
	}
	if !strings.Contains(out, "import math") {
		t.Fatalf("harmless import was removed: %q", out)
	}
}

func TestSanitizeJavascript(t *testing.T) {
	t.Parallel()
	code := `const fs = require('fs'); console.log(1+1);`
	out, replaced := Sanitize("javascript", code)
	if replaced != 1 {
		t.Fatalf("expected 1 replacement, got %d", replaced)
	}
	if strings.Contains(out, "require('fs')") {
		t.Fatalf("fs require survived: %q", out)
	}
}

func TestSanitizeC(t *testing.T) {
	t.Parallel()
	code := "#include <stdio.h>\n#include <stdlib.h>\nint main(){system(\"ls\");return 0;}\n"
	out, replaced := Sanitize("c", code)
	if replaced != 2 {
		t.Fatalf("expected 2 replacements, got %d", replaced)
	}
	if strings.Contains(out, "system(") {
		t.Fatalf("system call survived: %q", out)
	}
	if !strings.Contains(out, "#include <stdio.h>") {
		t.Fatalf("stdio include was removed: %q", out)
	}
}

func TestSanitizeCleanCodeUntouched(t *testing.T) {
	t.Parallel()
	code := "print('hello')\n"
	out, replaced := Sanitize("python", code)
	if replaced != 0 || out != code {
		t.Fatalf("clean code was modified: %q (%d replacements)", out, replaced)
	}
}

func TestSanitizeUnknownLanguagePassthrough(t *testing.T) {
	t.Parallel()
	code := "whatever"
	out, replaced := Sanitize("brainfuck", code)
	if replaced != 0 || out != code {
		t.Fatalf("unknown language should pass through unchanged")
	}
}
