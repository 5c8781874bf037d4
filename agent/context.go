package agent

import "sort"

var (
	yearKeys   = []string{"שנה", "year", "Year"}
	monthKeys  = []string{"חודש", "month", "Month"}
	entityKeys = []string{"לקוח", "customer", "Customer"}
)

// ExtractContext pulls reusable dimensional facts out of a result set:
// the distinct years and months present, and the most frequent entities.
// Later turns feed these back into planning so "and in 2023?" resolves.
func ExtractContext(rows []map[string]any) map[string]any {
	ctx := make(map[string]any)
	if len(rows) == 0 {
		return ctx
	}

	sample := rows
	if len(sample) > 200 {
		sample = sample[:200]
	}

	for _, key := range yearKeys {
		if _, ok := rows[0][key]; ok {
			ctx["year"] = distinctValues(sample, key)
			break
		}
	}
	for _, key := range monthKeys {
		if _, ok := rows[0][key]; ok {
			ctx["month"] = distinctValues(sample, key)
			break
		}
	}
	for _, key := range entityKeys {
		if _, ok := rows[0][key]; ok {
			ctx["top_entities"] = map[string]any{
				"column": key,
				"values": topFrequent(sample, key, 5),
			}
			break
		}
	}
	return ctx
}

func distinctValues(rows []map[string]any, key string) []any {
	seen := make(map[any]bool)
	var out []any
	for _, r := range rows {
		v := r[key]
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func topFrequent(rows []map[string]any, key string, n int) []any {
	freq := make(map[any]int)
	var order []any
	for _, r := range rows {
		v := r[key]
		if freq[v] == 0 {
			order = append(order, v)
		}
		freq[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}
