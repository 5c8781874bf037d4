package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
)

// fakeCompleter routes calls by purpose to canned behaviors.
type fakeCompleter struct {
	chatFn func(purpose llm.Purpose, msgs []*schema.Message) (llm.Result, error)
	callFn func(purpose llm.Purpose, msgs []*schema.Message, out any) (llm.Result, error)
}

func (f *fakeCompleter) Chat(_ context.Context, purpose llm.Purpose, msgs []*schema.Message) (llm.Result, error) {
	if f.chatFn == nil {
		return llm.Result{}, errors.New("unexpected chat call")
	}
	return f.chatFn(purpose, msgs)
}

func (f *fakeCompleter) CallFunction(_ context.Context, purpose llm.Purpose, msgs []*schema.Message, out any) (llm.Result, error) {
	if f.callFn == nil {
		return llm.Result{}, errors.New("unexpected function call")
	}
	return f.callFn(purpose, msgs, out)
}

// decodeInto mimics the client's JSON handoff for function results.
func decodeInto(out any, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// fakeQuerier counts executions and delegates to fn.
type fakeQuerier struct {
	calls int
	fn    func(sql string) (*QueryResult, error)
}

func (f *fakeQuerier) Query(_ context.Context, sql string) (*QueryResult, error) {
	f.calls++
	return f.fn(sql)
}

// nopNotifier records nothing.
type nopNotifier struct{}

func (nopNotifier) Notify(string, string, time.Duration, any) {}

// recordingNotifier keeps status texts for assertions.
type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) Notify(_, statusText string, _ time.Duration, _ any) {
	r.events = append(r.events, statusText)
}

// resultWithRows builds a QueryResult with n identical rows.
func resultWithRows(columns []string, n int) *QueryResult {
	rows := make([]map[string]any, n)
	for i := range rows {
		row := make(map[string]any, len(columns))
		for j, c := range columns {
			row[c] = float64(i*len(columns) + j)
		}
		rows[i] = row
	}
	return &QueryResult{Columns: columns, Rows: rows, ExecutionTime: time.Millisecond}
}
