package transform

import (
	"fmt"
	"sort"
)

// Validate checks cfg for structural problems without mutating it. It
// returns false when any hard error is present (a mapping with an empty
// target, or a literal mapping without a value) and the list of findings.
// A missing role or content mapping is reported as a warning only, since
// some providers accept partial messages.
func Validate(cfg Config) (bool, []string) {
	var findings []string
	valid := true

	if _, ok := cfg.Mapping[SourceRole]; !ok {
		findings = append(findings, "warning: no mapping for role field")
	}
	if _, ok := cfg.Mapping[SourceContent]; !ok {
		findings = append(findings, "warning: no mapping for content field")
	}

	names := make([]string, 0, len(cfg.Mapping))
	for name := range cfg.Mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := cfg.Mapping[name]
		if m.Target == "" {
			findings = append(findings, fmt.Sprintf("error: mapping %q has an empty target path", name))
			valid = false
		}
		if m.Source == SourceLiteral && m.LiteralValue == nil {
			findings = append(findings, fmt.Sprintf("error: literal mapping %q has no literalValue", name))
			valid = false
		}
	}
	return valid, findings
}
