// Package agent implements the query-processing pipeline: classification,
// SQL synthesis (fast path plus analyze/plan/build fallback), bounded
// self-healing execution, visualization selection and history upkeep.
package agent

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
)

// Querier executes read-only SQL against the analytic engine.
type Querier interface {
	Query(ctx context.Context, sql string) (*QueryResult, error)
}

// Completer is the completion-service surface the pipeline depends on.
// Satisfied by *llm.Client; replaced by fakes in tests.
type Completer interface {
	Chat(ctx context.Context, purpose llm.Purpose, msgs []*schema.Message) (llm.Result, error)
	CallFunction(ctx context.Context, purpose llm.Purpose, msgs []*schema.Message, out any) (llm.Result, error)
}

// Notifier pushes advisory status events keyed by message id. Delivery is
// best effort; events to unregistered ids are dropped.
type Notifier interface {
	Notify(messageID, statusText string, elapsed time.Duration, data any)
}

// QueryResult is one executed result set. Columns preserves select-list
// order, which row maps cannot.
type QueryResult struct {
	Columns       []string
	Rows          []map[string]any
	ExecutionTime time.Duration
}

// Request is one inbound chat message after transport decoding.
type Request struct {
	Message   string
	ChatID    string
	MessageID string

	// Clarification carries the user's answer to a prior clarification
	// response: Original is replaced by Selected in the message text and
	// the whole request re-runs.
	Clarification *Clarification

	UserEmail string
	UserName  string
}

// Clarification is the follow-up payload resolving a missing identifier.
type Clarification struct {
	Original string `json:"original"`
	Selected string `json:"selected"`
}

// Data is the tabular payload of a response: column names plus positional
// row values.
type Data struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	FastPath       bool    `json:"fastPath,omitempty"`
	Complexity     string  `json:"complexity,omitempty"`
	Intent         string  `json:"intent,omitempty"`
	ExecutionTime  int64   `json:"executionTime"`
	ProcessingTime int64   `json:"processingTime"`
	Attempts       int     `json:"attempts,omitempty"`
	TotalCost      float64 `json:"totalCost,omitempty"`
}

// Response is the single reply shape for every path. Exactly one of the
// alternate shapes is populated: data answer, free/meta answer,
// clarification, or terminal error.
type Response struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId,omitempty"`
	Reply     string    `json:"reply"`
	SQL       string    `json:"sql,omitempty"`
	Viz       string    `json:"viz,omitempty"`
	VizType   string    `json:"vizType,omitempty"`
	Data      *Data     `json:"data,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`

	Cache bool `json:"cache,omitempty"`

	Clarification bool     `json:"clarification,omitempty"`
	Missing       *Missing `json:"missing,omitempty"`
	Options       []string `json:"options,omitempty"`

	Error          bool  `json:"error,omitempty"`
	ProcessingTime int64 `json:"processingTime,omitempty"`
}

// Missing names the unresolved identifier behind a clarification.
type Missing struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Visualization kinds.
const (
	VizTable    = "table"
	VizBar      = "bar"
	VizLine     = "line"
	VizPie      = "pie"
	VizKPI      = "kpi"
	VizGroupBar = "groupbar"
	VizStackBar = "stackbar"
	VizNone     = "none"
)

// Classification decisions.
const (
	DecisionData = "data"
	DecisionFree = "free"
	DecisionMeta = "meta"
)

// DataProfile classifies a result set's columns for visualization
// selection. Derived from the first row only; stateless.
type DataProfile struct {
	Columns  []string
	Numerics []string
	Years    []string
	Dates    []string
	RowCount int
}

// DimensionCount returns the number of non-metric, non-temporal columns.
func (p DataProfile) DimensionCount() int {
	return len(p.Columns) - len(p.Numerics) - len(p.Years) - len(p.Dates)
}
