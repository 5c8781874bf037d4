package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/logger"
)

const testSchema = "sales(customer_name VARCHAR, total_amount DOUBLE, שנה INTEGER)\n" +
	"inventory(item_code VARCHAR, quantity INTEGER)"

func TestGuardSQL_RejectsWriteVerbs(t *testing.T) {
	cases := []string{
		"DROP TABLE sales",
		"drop table sales",
		"SELECT 1; DELETE FROM sales",
		"INSERT INTO sales VALUES (1)",
		"UPDATE sales SET x = 1",
		"ALTER TABLE sales ADD COLUMN y INT",
		"CREATE TABLE t (x INT)",
		"TRUNCATE sales",
		"select * from x where note = 'ok' UNION ALL SELECT 1; TrUnCaTe sales",
	}
	for _, sql := range cases {
		if err := GuardSQL(sql); err != ErrWriteRejected {
			t.Errorf("GuardSQL(%q) = %v, want ErrWriteRejected", sql, err)
		}
	}
}

func TestGuardSQL_AllowsSelect(t *testing.T) {
	cases := []string{
		"SELECT * FROM sales",
		"select customer_name, sum(total_amount) from sales group by 1",
		// verbs inside identifiers should not trip the word-boundary match
		"SELECT updated_at FROM sales",
	}
	for _, sql := range cases {
		if err := GuardSQL(sql); err != nil {
			t.Errorf("GuardSQL(%q) = %v, want nil", sql, err)
		}
	}
}

func TestExecutor_AttemptCapNeverExceeded(t *testing.T) {
	querier := &fakeQuerier{fn: func(string) (*QueryResult, error) {
		return nil, errors.New("Binder Error: something went wrong")
	}}
	completer := &fakeCompleter{chatFn: func(purpose llm.Purpose, _ []*schema.Message) (llm.Result, error) {
		return llm.Result{Content: "SELECT 1"}, nil
	}}

	ex := NewExecutor(querier, completer, Rules{}, 3, 0, logger.Nop())
	_, err := ex.Run(context.Background(), "SELECT broken", "q", testSchema, "m1", nopNotifier{}, time.Now())

	var exhausted *ExhaustedRetriesError
	if !errors.As(err, &exhausted) {
		t.Fatalf("want ExhaustedRetriesError, got %v", err)
	}
	if exhausted.Attempts != 4 {
		t.Errorf("reported attempts = %d, want 4", exhausted.Attempts)
	}
	if querier.calls > 4 {
		t.Errorf("executed %d times, cap is MaxRefine+1 = 4", querier.calls)
	}
}

func TestExecutor_MechanicalSubstitutionThenSuccess(t *testing.T) {
	querier := &fakeQuerier{fn: func(sql string) (*QueryResult, error) {
		if strings.Contains(sql, "customer") && !strings.Contains(sql, "customer_name") {
			return nil, errors.New(`Binder Error: Referenced column "customer" not found`)
		}
		return resultWithRows([]string{"customer_name"}, 2), nil
	}}
	completer := &fakeCompleter{chatFn: func(llm.Purpose, []*schema.Message) (llm.Result, error) {
		t.Fatal("model repair should not run before the mechanical substitution")
		return llm.Result{}, nil
	}}

	ex := NewExecutor(querier, completer, Rules{}, 3, 0, logger.Nop())
	out, err := ex.Run(context.Background(), "SELECT customer FROM sales", "q", testSchema, "m1", nopNotifier{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.SQL, "customer_name") {
		t.Errorf("substitution not applied, final sql: %q", out.SQL)
	}
	if out.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", out.Attempts)
	}
}

func TestExecutor_PersistentMissingColumnBecomesClarification(t *testing.T) {
	querier := &fakeQuerier{fn: func(string) (*QueryResult, error) {
		return nil, errors.New(`Binder Error: Referenced column "amount" not found`)
	}}
	completer := &fakeCompleter{chatFn: func(llm.Purpose, []*schema.Message) (llm.Result, error) {
		return llm.Result{Content: "SELECT amount FROM sales"}, nil
	}}

	ex := NewExecutor(querier, completer, Rules{}, 3, 0, logger.Nop())
	_, err := ex.Run(context.Background(), "SELECT amount FROM sales", "q", testSchema, "m1", nopNotifier{}, time.Now())

	var cn *ClarificationNeeded
	if !errors.As(err, &cn) {
		t.Fatalf("want ClarificationNeeded, got %v", err)
	}
	if cn.Missing.Type != "column" || cn.Missing.Name != "amount" {
		t.Errorf("missing = %+v", cn.Missing)
	}
	if len(cn.Candidates) == 0 || cn.Candidates[0] != "total_amount" {
		t.Errorf("candidates = %v, want total_amount first", cn.Candidates)
	}
}

func TestExecutor_RepairedSQLStillGuarded(t *testing.T) {
	first := true
	querier := &fakeQuerier{fn: func(string) (*QueryResult, error) {
		if first {
			first = false
			return nil, errors.New("Parser Error: syntax error")
		}
		t.Fatal("guarded sql must not reach the engine")
		return nil, nil
	}}
	completer := &fakeCompleter{chatFn: func(llm.Purpose, []*schema.Message) (llm.Result, error) {
		return llm.Result{Content: "DROP TABLE sales"}, nil
	}}

	ex := NewExecutor(querier, completer, Rules{}, 3, 0, logger.Nop())
	_, err := ex.Run(context.Background(), "SELECT bad syntax", "q", testSchema, "m1", nopNotifier{}, time.Now())
	if !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("want ErrWriteRejected, got %v", err)
	}
}
