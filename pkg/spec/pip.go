package spec

import "strings"

// PipEntry is one pip requirement, keyed by normalized package name so a
// later declaration of the same package replaces the earlier specifier.
type PipEntry struct {
	Requirement string
	Name        string
}

// NewPipEntry derives the dedup key from a requirement string. Direct URL
// requirements key on the full URL, everything else on the PEP 503
// normalized project name.
func NewPipEntry(requirement string) (PipEntry, error) {
	req := strings.TrimSpace(requirement)
	if req == "" {
		return PipEntry{}, &SpecError{Entry: "pip package", Reason: "requirement is empty"}
	}
	if strings.Contains(req, "://") {
		return PipEntry{Requirement: req, Name: req}, nil
	}
	name := req
	if i := strings.IndexAny(name, " <>=!~;@["); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return PipEntry{}, &SpecError{Entry: req, Reason: "requirement has no package name"}
	}
	return PipEntry{Requirement: req, Name: normalizePipName(name)}, nil
}

func normalizePipName(name string) string {
	var b strings.Builder
	prevSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			prevSep = true
			continue
		}
		if prevSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}
