package agent

import "testing"

func TestChooseViz_Precedence(t *testing.T) {
	cases := []struct {
		name    string
		intent  string
		profile DataProfile
		want    string
	}{
		{
			name:    "row count over 500 is always a table",
			profile: DataProfile{Columns: []string{"a", "b"}, Numerics: []string{"b"}, RowCount: 501},
			want:    VizTable,
		},
		{
			name:    "tiny result with few metrics is kpi",
			profile: DataProfile{Columns: []string{"total"}, Numerics: []string{"total"}, RowCount: 1},
			want:    VizKPI,
		},
		{
			name: "dimension plus year column is groupbar",
			profile: DataProfile{
				Columns:  []string{"customer", "שנה", "total"},
				Numerics: []string{"total"},
				Years:    []string{"שנה"},
				RowCount: 40,
			},
			want: VizGroupBar,
		},
		{
			name: "two dimensions one metric is stackbar",
			profile: DataProfile{
				Columns:  []string{"month_name", "agent", "total"},
				Numerics: []string{"total"},
				RowCount: 30,
			},
			want: VizStackBar,
		},
		{
			name: "single dimension single metric small set is bar",
			profile: DataProfile{
				Columns:  []string{"customer", "total"},
				Numerics: []string{"total"},
				RowCount: 20,
			},
			want: VizBar,
		},
		{
			name: "one date column short series is line",
			profile: DataProfile{
				Columns:  []string{"תאריך", "a", "b", "c"},
				Dates:    []string{"תאריך"},
				Numerics: []string{"a", "b", "c"},
				RowCount: 10,
			},
			want: VizLine,
		},
		{
			name:    "fallback is table",
			profile: DataProfile{Columns: []string{"a", "b", "c", "d"}, RowCount: 100},
			want:    VizTable,
		},
		{
			name:    "explicit intent beats every heuristic",
			intent:  VizPie,
			profile: DataProfile{Columns: []string{"a"}, RowCount: 10000},
			want:    VizPie,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChooseViz(tc.intent, tc.profile); got != tc.want {
				t.Errorf("ChooseViz() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestChooseViz_KPIRequiresFewMetrics(t *testing.T) {
	p := DataProfile{
		Columns:  []string{"a", "b", "c", "d"},
		Numerics: []string{"a", "b", "c", "d"},
		RowCount: 2,
	}
	if got := ChooseViz("", p); got == VizKPI {
		t.Errorf("4 numeric columns should not produce kpi, got %q", got)
	}
}

func TestExplicitIntent(t *testing.T) {
	cases := []struct {
		q    string
		want string
	}{
		{"הצג לי עוגה של מכירות", VizPie},
		{"show me a pie of sales", VizPie},
		{"תראה bar של לקוחות", VizBar},
		{"stacked bar by month", VizStackBar},
		{"גרף מוערם לפי חודש", VizStackBar},
		{"grouped bar לפי שנים", VizGroupBar},
		{"תציג טבלה מלאה", VizTable},
		{"כמה מכרנו החודש", ""},
	}
	for _, tc := range cases {
		if got := ExplicitIntent(tc.q); got != tc.want {
			t.Errorf("ExplicitIntent(%q) = %q, want %q", tc.q, got, tc.want)
		}
	}
}

func TestProfileRows(t *testing.T) {
	rows := []map[string]any{
		{"לקוח": "א", "שנה": 2024, "סכום": 123.4, "תאריך": "2024-01-01"},
		{"לקוח": "ב", "שנה": 2025, "סכום": 99.0, "תאריך": "2024-02-01"},
	}
	p := ProfileRows([]string{"לקוח", "שנה", "סכום", "תאריך"}, rows)

	if p.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", p.RowCount)
	}
	if len(p.Numerics) != 1 || p.Numerics[0] != "סכום" {
		t.Errorf("Numerics = %v, a numeric year column must not count as a metric", p.Numerics)
	}
	if len(p.Years) != 1 || p.Years[0] != "שנה" {
		t.Errorf("Years = %v", p.Years)
	}
	if len(p.Dates) != 1 || p.Dates[0] != "תאריך" {
		t.Errorf("Dates = %v", p.Dates)
	}
	if p.DimensionCount() != 1 {
		t.Errorf("DimensionCount() = %d, want 1", p.DimensionCount())
	}
}

func TestProfileRows_Empty(t *testing.T) {
	p := ProfileRows(nil, nil)
	if p.RowCount != 0 || len(p.Columns) != 0 {
		t.Errorf("empty input should produce empty profile, got %+v", p)
	}
}
