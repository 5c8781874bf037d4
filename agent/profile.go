package agent

import "regexp"

var (
	dateLikeRe = regexp.MustCompile(`(?i)^(שנה|year|month|day|חודש|תאריך)$`)
	yearRe     = regexp.MustCompile(`(?i)(שנה|year)`)
)

// ProfileRows classifies a result set's columns from its first row.
// A column counts as numeric only when its first value is a number and
// its name is not date-like; this keeps a numeric year column out of the
// metric set.
func ProfileRows(columns []string, rows []map[string]any) DataProfile {
	p := DataProfile{RowCount: len(rows)}
	if len(rows) == 0 {
		return p
	}
	p.Columns = columns

	first := rows[0]
	for _, c := range columns {
		switch {
		case yearRe.MatchString(c):
			p.Years = append(p.Years, c)
		case isNumber(first[c]) && !dateLikeRe.MatchString(c):
			p.Numerics = append(p.Numerics, c)
		case dateLikeRe.MatchString(c) && !isNumber(first[c]):
			p.Dates = append(p.Dates, c)
		}
	}
	return p
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}
