package agent

import (
	"fmt"
	"strings"
)

// DataInsights derives quick deterministic observations from a result
// set: concentration of the leading entity, large spreads between the
// extremes of the first metric. Appended to the business summary when
// anything notable shows up.
func DataInsights(p DataProfile, rows []map[string]any) []string {
	var out []string
	if len(rows) == 0 || len(p.Numerics) == 0 {
		return out
	}

	metric := p.Numerics[0]
	var total, max, min float64
	first := true
	for _, r := range rows {
		v, ok := toFloat(r[metric])
		if !ok {
			continue
		}
		total += v
		if first || v > max {
			max = v
		}
		if first || v < min {
			min = v
		}
		first = false
	}
	if first {
		return out
	}

	if total > 0 {
		if share := max / total; share > 0.5 && len(rows) > 2 {
			out = append(out, fmt.Sprintf("הערך המוביל ב-%s מהווה %.0f%% מהסך הכולל", metric, share*100))
		}
	}
	if min > 0 && max/min > 10 {
		out = append(out, fmt.Sprintf("פער של פי %.0f בין הערך הגבוה לנמוך ב-%s", max/min, metric))
	}
	return out
}

// AppendInsights joins insights onto the narrative reply.
func AppendInsights(reply string, insights []string) string {
	if len(insights) == 0 {
		return reply
	}
	return reply + "\n\nתובנות נוספות: " + strings.Join(insights, "; ")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
