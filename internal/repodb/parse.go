package repodb

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/a2-ai/rv/internal/rversion"
)

// ParsePACKAGES parses an upstream PACKAGES-style index: RFC-822-like
// records separated by a blank line, with continuation lines beginning
// with whitespace folded into the previous field (spec.md §4.1, §6).
// Unknown fields are ignored; a record missing Package or Version is
// rejected, since every other field depends on that identity.
func ParsePACKAGES(data []byte) ([]PackageRecord, error) {
	var records []PackageRecord

	for _, block := range splitRecords(data) {
		fields := unfoldFields(block)
		if len(fields) == 0 {
			continue
		}

		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// splitRecords splits the PACKAGES text on blank lines, accepting both
// "\n" and "\r\n" line terminators (spec.md §6).
func splitRecords(data []byte) [][]string {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	var blocks [][]string
	var current []string
	scanner := bufio.NewScanner(bytes.NewReader(normalized))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}

	return blocks
}

// unfoldFields joins continuation lines (leading whitespace) onto the
// preceding "Field: value" line and splits on the first colon.
func unfoldFields(lines []string) map[string]string {
	fields := make(map[string]string)
	var lastKey string

	for _, line := range lines {
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			fields[lastKey] = fields[lastKey] + " " + strings.TrimSpace(line)
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue // malformed line outside a continuation; ignore
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
		lastKey = key
	}

	return fields
}

func recordFromFields(fields map[string]string) (PackageRecord, error) {
	name, ok := fields["Package"]
	if !ok || name == "" {
		return PackageRecord{}, fmt.Errorf("PACKAGES record missing required Package field")
	}
	versionStr, ok := fields["Version"]
	if !ok || versionStr == "" {
		return PackageRecord{}, fmt.Errorf("package %q: PACKAGES record missing required Version field", name)
	}
	version, err := rversion.Parse(versionStr)
	if err != nil {
		return PackageRecord{}, fmt.Errorf("package %q: %w", name, err)
	}

	rec := PackageRecord{
		Name:    name,
		Version: version,
		License: fields["License"],
		Path:    fields["Path"],
	}

	if deps, err := parseDepField(fields["Depends"]); err != nil {
		return PackageRecord{}, fmt.Errorf("package %q Depends: %w", name, err)
	} else {
		rec.Depends = deps
	}
	if deps, err := parseDepField(fields["Imports"]); err != nil {
		return PackageRecord{}, fmt.Errorf("package %q Imports: %w", name, err)
	} else {
		rec.Imports = deps
	}
	if deps, err := parseDepField(fields["LinkingTo"]); err != nil {
		return PackageRecord{}, fmt.Errorf("package %q LinkingTo: %w", name, err)
	} else {
		rec.LinkingTo = deps
	}
	if deps, err := parseDepField(fields["Suggests"]); err != nil {
		return PackageRecord{}, fmt.Errorf("package %q Suggests: %w", name, err)
	} else {
		rec.Suggests = deps
	}
	if deps, err := parseDepField(fields["Enhances"]); err != nil {
		return PackageRecord{}, fmt.Errorf("package %q Enhances: %w", name, err)
	} else {
		rec.Enhances = deps
	}

	rec.NeedsCompilation = strings.EqualFold(strings.TrimSpace(fields["NeedsCompilation"]), "yes")
	if archs := strings.TrimSpace(fields["Archs"]); archs != "" {
		for _, a := range strings.Split(archs, ",") {
			if a = strings.TrimSpace(a); a != "" {
				rec.Archs = append(rec.Archs, a)
			}
		}
	}

	return rec, nil
}

// parseDepField parses a comma-separated dependency field: each entry is
// a bare name, or "Name (op version)" (spec.md §4.1). The literal "R"
// entry (the runtime itself) is kept as an ordinary Dep; callers treat it
// like any other system package.
func parseDepField(raw string) ([]Dep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var deps []Dep
	for _, entry := range splitTopLevelCommas(raw) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		openIdx := strings.IndexByte(entry, '(')
		if openIdx < 0 {
			deps = append(deps, Dep{Name: entry})
			continue
		}

		name := strings.TrimSpace(entry[:openIdx])
		closeIdx := strings.LastIndexByte(entry, ')')
		if closeIdx < openIdx {
			return nil, fmt.Errorf("malformed dependency entry %q", entry)
		}
		inner := strings.TrimSpace(entry[openIdx+1 : closeIdx])

		op, versionStr, err := splitOpVersion(inner)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", entry, err)
		}
		version, err := rversion.Parse(versionStr)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", entry, err)
		}

		deps = append(deps, Dep{Name: name, Op: op, Version: version})
	}

	return deps, nil
}

// splitTopLevelCommas splits on commas that are not inside a "(...)"
// version-bound group, since the bound itself may read "(>= 1.0.0)" with
// no comma but a future format could embed one.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

var ops = []DepOp{OpGE, OpLE, OpEQ, OpGT, OpLT}

func splitOpVersion(inner string) (DepOp, string, error) {
	for _, op := range ops {
		if strings.HasPrefix(inner, string(op)) {
			return op, strings.TrimSpace(inner[len(op):]), nil
		}
	}
	return "", "", fmt.Errorf("unrecognized version-bound operator in %q", inner)
}
