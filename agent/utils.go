package agent

import (
	"regexp"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```sql\\s*|```")
	sqlPrefixRe = regexp.MustCompile(`(?i)^sql\s+`)
	bulletRe    = regexp.MustCompile(`^\s*([-•*]|\d+[.)])\s+`)
	pipeRe      = regexp.MustCompile(`^\s*\|`)
)

// UnwrapSQL strips markdown fences and a leading "sql" prefix from model
// output.
func UnwrapSQL(sql string) string {
	sql = fenceRe.ReplaceAllString(sql, "")
	sql = sqlPrefixRe.ReplaceAllString(sql, "")
	return strings.TrimSpace(sql)
}

// StripLongLists drops bullet or pipe-table lines from a narrative when
// the model produced more than maxLines of them. The tabular payload is
// returned separately anyway; a wall of repeated rows in the reply is
// noise.
func StripLongLists(txt string, maxLines int) string {
	lines := strings.Split(txt, "\n")

	bullets, pipes := 0, 0
	for _, l := range lines {
		if bulletRe.MatchString(l) {
			bullets++
		}
		if pipeRe.MatchString(l) {
			pipes++
		}
	}
	if bullets <= maxLines && pipes <= maxLines {
		return txt
	}

	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if bulletRe.MatchString(l) || pipeRe.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
