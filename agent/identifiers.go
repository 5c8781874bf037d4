package agent

import (
	"regexp"
	"strings"
)

// Known analytic-engine error phrasings for unresolved identifiers.
var (
	colNamedRe = regexp.MustCompile(`(?i)column named "([^"]+)"`)
	refColRe   = regexp.MustCompile(`(?i)Referenced column "([^"]+)"`)
	refTblRe   = regexp.MustCompile(`(?i)Referenced table "([^"]+)"`)
)

// ExtractMissingIdentifier parses a driver error message for the column
// or table that failed to resolve. Returns nil when the error is of a
// different class.
func ExtractMissingIdentifier(errMsg string) *MissingIdentifier {
	if m := colNamedRe.FindStringSubmatch(errMsg); m != nil {
		return &MissingIdentifier{Type: "column", Name: m[1]}
	}
	if m := refColRe.FindStringSubmatch(errMsg); m != nil {
		return &MissingIdentifier{Type: "column", Name: m[1]}
	}
	if m := refTblRe.FindStringSubmatch(errMsg); m != nil {
		return &MissingIdentifier{Type: "table", Name: m[1]}
	}
	return nil
}

var schemaColsSegRe = regexp.MustCompile(`\(([^)]+)\)`)

// SuggestIdentifiers searches the schema text for real identifiers that
// contain partial (case-insensitive substring). The schema text format is
// one "table(col type, col type)" line per table.
func SuggestIdentifiers(partial, kind, schemaText string, limit int) []string {
	var out []string
	lower := strings.ToLower(partial)
	seen := make(map[string]bool)

	add := func(name string) {
		if name == "" || seen[name] || !strings.Contains(strings.ToLower(name), lower) {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	if kind == "column" {
		for _, seg := range schemaColsSegRe.FindAllStringSubmatch(schemaText, -1) {
			for _, col := range strings.Split(seg[1], ",") {
				fields := strings.Fields(strings.TrimSpace(col))
				if len(fields) > 0 {
					add(fields[0])
				}
			}
		}
	} else {
		for _, line := range strings.Split(schemaText, "\n") {
			name, _, _ := strings.Cut(line, "(")
			add(strings.TrimSpace(name))
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
