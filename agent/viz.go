package agent

import (
	"regexp"
	"strings"
)

// Explicit chart-keyword patterns, Hebrew and English. Checked most
// specific first so "stacked bar" is not swallowed by the bar pattern.
var intentRules = []struct {
	re  *regexp.Regexp
	viz string
}{
	{regexp.MustCompile(`(pie|עוג(ה|ת))`), VizPie},
	{regexp.MustCompile(`\bline\b|(^|[\s"׳״])[בלכמ]?קו([\s"׳״]|$)`), VizLine},
	{regexp.MustCompile(`(stack(ed)?[-\s]?bar|מוערם)`), VizStackBar},
	{regexp.MustCompile(`(group(ed)?[-\s]?bar|השווא|שנים)`), VizGroupBar},
	{regexp.MustCompile(`(^|[\s"׳״])(bar|עמוד|גרף(ה)?)([\s"׳״]|$)`), VizBar},
	{regexp.MustCompile(`(^|[\s"׳״])(ב)?טבלת|טבלה([\s"׳״]|$)|\btable\b`), VizTable},
}

// ExplicitIntent returns the chart type the user asked for by name, or ""
// when the text carries no chart keyword.
func ExplicitIntent(q string) string {
	q = strings.ToLower(q)
	for _, r := range intentRules {
		if r.re.MatchString(q) {
			return r.viz
		}
	}
	return ""
}

// ChooseViz maps (explicit intent, profile) to a chart type. Explicit
// intent wins unconditionally; otherwise the first matching rule in the
// precedence list decides.
func ChooseViz(intent string, p DataProfile) string {
	if intent != "" {
		return intent
	}
	if p.RowCount > 500 {
		return VizTable
	}
	dims := p.DimensionCount()
	switch {
	case p.RowCount <= 3 && len(p.Numerics) <= 3:
		return VizKPI
	case dims >= 1 && len(p.Years) > 0:
		return VizGroupBar
	case dims == 2 && len(p.Numerics) == 1:
		return VizStackBar
	case dims >= 1 && len(p.Numerics) == 1 && p.RowCount <= 50:
		return VizBar
	case len(p.Dates) == 1 && p.RowCount <= 15:
		return VizLine
	default:
		return VizTable
	}
}
