package screen

import "regexp"

// Rule is one pattern that should never appear in a fixture field.
type Rule struct {
	Name     string
	Regex    *regexp.Regexp
	Severity float64 // 0.0 to 1.0
	Category string  // "instruction_bypass", "role_override", "output_steering", "structure"
}

// DefaultRules returns the built-in rules. Patterns are anchored on word
// boundaries so that real club and country names never match.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "ignore_previous",
			Regex:    regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above)\s+(instructions|rules|context)\b`),
			Severity: 0.95,
			Category: "instruction_bypass",
		},
		{
			Name:     "disregard_prior",
			Regex:    regexp.MustCompile(`(?i)\bdisregard\s+(all\s+)?(previous|prior)\s+(instructions|context|rules)\b`),
			Severity: 0.95,
			Category: "instruction_bypass",
		},
		{
			Name:     "score_steering",
			Regex:    regexp.MustCompile(`(?i)\b(home|away)_score\b`),
			Severity: 0.95,
			Category: "output_steering",
		},
		{
			Name:     "predict_steering",
			Regex:    regexp.MustCompile(`(?i)\b(always\s+)?(predict|answer|respond|output)\s+(with\s+)?\d+\s*[-:]\s*\d+`),
			Severity: 0.9,
			Category: "output_steering",
		},
		{
			Name:     "jailbreak",
			Regex:    regexp.MustCompile(`\bDAN\b|(?i)\b(do\s+anything\s+now|jailbreak|unrestricted\s+mode)\b`),
			Severity: 0.9,
			Category: "role_override",
		},
		{
			Name:     "role_prefix",
			Regex:    regexp.MustCompile(`(?i)(^|\n)\s*(system|assistant|user)\s*:`),
			Severity: 0.9,
			Category: "role_override",
		},
		{
			Name:     "code_fence",
			Regex:    regexp.MustCompile("```"),
			Severity: 0.85,
			Category: "structure",
		},
		{
			Name:     "new_instructions",
			Regex:    regexp.MustCompile(`(?i)\b(new|updated|revised)\s+instructions?\s*:`),
			Severity: 0.8,
			Category: "instruction_bypass",
		},
		{
			Name:     "you_are_now",
			Regex:    regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(a|an|the)\s+`),
			Severity: 0.8,
			Category: "role_override",
		},
		{
			Name:     "json_braces",
			Regex:    regexp.MustCompile(`[{}\[\]]`),
			Severity: 0.75,
			Category: "structure",
		},
		{
			Name:     "multiline",
			Regex:    regexp.MustCompile(`[\r\n]`),
			Severity: 0.7,
			Category: "structure",
		},
	}
}
