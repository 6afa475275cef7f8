package sandbox

import "regexp"

// The static filter neutralizes well-known escape constructs before the
// code reaches the sandbox. Real isolation comes from the backend's
// process/container limits; this only narrows the obvious surface.

type sanitizeRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var sanitizeRules = map[string][]sanitizeRule{
	"python": {
		{regexp.MustCompile(`(?m)^\s*import\s+os\b.*$`), "# [blocked]"},
		{regexp.MustCompile(`(?m)^\s*import\s+subprocess\b.*$`), "# [blocked]"},
		{regexp.MustCompile(`(?m)^\s*import\s+sys\b.*$`), "# [blocked]"},
		{regexp.MustCompile(`(?m)^\s*from\s+(os|subprocess|sys)\b.*$`), "# [blocked]"},
		{regexp.MustCompile(`__import__\s*\(`), "__blocked__("},
	},
	"javascript": {
		{regexp.MustCompile(`require\s*\(\s*['"]fs['"]\s*\)`), "/* blocked */ ({})"},
		{regexp.MustCompile(`require\s*\(\s*['"]child_process['"]\s*\)`), "/* blocked */ ({})"},
		{regexp.MustCompile(`require\s*\(\s*['"]net['"]\s*\)`), "/* blocked */ ({})"},
		{regexp.MustCompile(`process\.exit\s*\(`), "(function(){})("},
	},
	"java": {
		{regexp.MustCompile(`System\.exit\s*\(`), "/* blocked */ ((java.util.function.IntConsumer)(x->{})).accept("},
		{regexp.MustCompile(`Runtime\.getRuntime\s*\(\s*\)`), "/* blocked */ null"},
		{regexp.MustCompile(`ProcessBuilder`), "/* blocked */ Object"},
	},
	"cpp": {
		{regexp.MustCompile(`(?m)^\s*#include\s*<cstdlib>.*$`), "// [blocked]"},
		{regexp.MustCompile(`(?m)^\s*#include\s*<stdlib\.h>.*$`), "// [blocked]"},
		{regexp.MustCompile(`\bsystem\s*\(`), "blocked_call("},
	},
	"c": {
		{regexp.MustCompile(`(?m)^\s*#include\s*<stdlib\.h>.*$`), "// [blocked]"},
		{regexp.MustCompile(`\bsystem\s*\(`), "blocked_call("},
		{regexp.MustCompile(`\bexecve?\s*\(`), "blocked_call("},
	},
}

// Sanitize rewrites known dangerous constructs for the given language
// and reports how many replacements were made.
func Sanitize(language, code string) (string, int) {
	rules, ok := sanitizeRules[language]
	if !ok {
		return code, 0
	}
	replaced := 0
	for _, rule := range rules {
		matches := rule.pattern.FindAllStringIndex(code, -1)
		if len(matches) == 0 {
			continue
		}
		replaced += len(matches)
		code = rule.pattern.ReplaceAllString(code, rule.replacement)
	}
	return code, replaced
}
