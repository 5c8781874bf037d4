package agent

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"
)

// DBQuerier executes SQL against a database/sql handle and normalizes
// driver values for JSON serialization: huge integers to float64, byte
// slices to strings, timestamps to yyyy-mm-dd.
type DBQuerier struct {
	db *sql.DB
}

func NewDBQuerier(db *sql.DB) *DBQuerier {
	return &DBQuerier{db: db}
}

func (q *DBQuerier) Query(ctx context.Context, sqlText string) (*QueryResult, error) {
	start := time.Now()
	rows, err := q.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          out,
		ExecutionTime: time.Since(start),
	}, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return v
	}
}
