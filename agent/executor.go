package agent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/logger"
)

// writeGuardRe rejects any statement carrying a write/DDL verb. Applied
// before every execution, including repaired SQL, and never bypassed.
var writeGuardRe = regexp.MustCompile(`(?i)\b(alter|create|insert|update|delete|drop|truncate)\b`)

// GuardSQL returns ErrWriteRejected for non-SELECT statements.
func GuardSQL(sql string) error {
	if writeGuardRe.MatchString(sql) {
		return ErrWriteRejected
	}
	return nil
}

// execState tracks where the refine loop is. The attempt counter is
// explicit state, not call-stack depth.
type execState int

const (
	statePending execState = iota
	stateExecuting
	stateSucceeded
	stateRepairing
	stateClarificationNeeded
	stateFailed
)

func (s execState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateExecuting:
		return "executing"
	case stateSucceeded:
		return "succeeded"
	case stateRepairing:
		return "repairing"
	case stateClarificationNeeded:
		return "clarification_needed"
	default:
		return "failed"
	}
}

// Executor runs SQL with bounded self-healing: one mechanical identifier
// substitution, then model-assisted repair, up to MaxRefine repairs after
// the first try. An unresolved missing identifier on the final attempt
// becomes a ClarificationNeeded instead of another repair.
type Executor struct {
	querier   Querier
	completer Completer
	rules     Rules
	maxRefine int
	backoff   time.Duration
	log       *logger.Logger
}

func NewExecutor(querier Querier, completer Completer, rules Rules, maxRefine int, backoff time.Duration, log *logger.Logger) *Executor {
	return &Executor{
		querier:   querier,
		completer: completer,
		rules:     rules,
		maxRefine: maxRefine,
		backoff:   backoff,
		log:       log,
	}
}

// ExecOutcome is a successful run: the result set, the SQL that finally
// worked and how many attempts it took.
type ExecOutcome struct {
	Result   *QueryResult
	SQL      string
	Attempts int
}

// Run executes sql, repairing on failure until success, clarification or
// exhaustion. notify reports progress per attempt; started anchors the
// elapsed times in those events.
func (e *Executor) Run(ctx context.Context, sqlText, userQ, schemaText, messageID string, notify Notifier, started time.Time) (*ExecOutcome, error) {
	state := statePending
	subApplied := false
	var lastErr error
	var lastMissing *MissingIdentifier

	for attempt := 0; attempt <= e.maxRefine; attempt++ {
		if attempt > 0 && e.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.backoff * time.Duration(attempt)):
			}
		}

		if err := GuardSQL(sqlText); err != nil {
			e.log.Error("write operation rejected", "message_id", messageID, "sql_preview", preview(sqlText))
			return nil, err
		}

		state = stateExecuting
		e.log.Info("sql execution attempt", "state", state, "attempt", attempt+1, "sql_preview", preview(sqlText))
		result, err := e.querier.Query(ctx, sqlText)
		if err == nil {
			state = stateSucceeded
			e.log.Info("sql execution finished",
				"state", state,
				"attempt", attempt+1,
				"rows", len(result.Rows),
				"execution_ms", result.ExecutionTime.Milliseconds())
			return &ExecOutcome{Result: result, SQL: sqlText, Attempts: attempt + 1}, nil
		}

		lastErr = &SQLExecutionError{SQL: sqlText, Attempt: attempt + 1, Err: err}
		lastMissing = ExtractMissingIdentifier(err.Error())
		e.log.Warn("sql execution failed", "attempt", attempt+1, "error", err)

		// One mechanical guess before involving the model: swap the
		// missing identifier for the closest schema match and retry.
		if lastMissing != nil && !subApplied {
			if cands := SuggestIdentifiers(lastMissing.Name, lastMissing.Type, schemaText, 5); len(cands) > 0 {
				sqlText = strings.ReplaceAll(sqlText, lastMissing.Name, cands[0])
				subApplied = true
				notify.Notify(messageID, "החלפת מזהה: "+lastMissing.Name+" → "+cands[0], time.Since(started), sqlText)
				continue
			}
		}

		if attempt == e.maxRefine {
			break
		}

		state = stateRepairing
		notify.Notify(messageID, "תיקון SQL", time.Since(started), err.Error())
		fixed, ferr := e.repair(ctx, sqlText, err.Error(), userQ, schemaText)
		if ferr != nil || fixed == "" || fixed == sqlText {
			e.log.Warn("sql repair produced nothing new", "state", state, "attempt", attempt+1, "error", ferr)
			continue
		}
		sqlText = fixed
		notify.Notify(messageID, "SQL מעודכן", time.Since(started), sqlText)
	}

	if lastMissing != nil {
		state = stateClarificationNeeded
		e.log.Info("asking user to disambiguate", "state", state, "kind", lastMissing.Type, "name", lastMissing.Name)
		return nil, &ClarificationNeeded{
			Missing:    *lastMissing,
			Candidates: SuggestIdentifiers(lastMissing.Name, lastMissing.Type, schemaText, 5),
		}
	}

	state = stateFailed
	e.log.Error("sql refine exhausted", "state", state, "attempts", e.maxRefine+1, "error", lastErr)
	return nil, &ExhaustedRetriesError{Attempts: e.maxRefine + 1, LastErr: lastErr}
}

// repair asks the fixer model for corrected SQL given the failure.
func (e *Executor) repair(ctx context.Context, badSQL, errMsg, userQ, schemaText string) (string, error) {
	msgs := []*schema.Message{
		{Role: schema.System, Content: "תקן שאילתת SQL שנכשלה. חובה להשתמש ב-SELECT בלבד (אין ALTER/CREATE/INSERT/UPDATE/DELETE). החזר רק SQL בלי הסברים."},
		{Role: schema.System, Content: "Schema:\n" + schemaText + "\n\n" + e.rules.Important + "\n\n" + e.rules.ImportantCTI},
		{Role: schema.User, Content: "שאלה עסקית: \"" + userQ + "\"\n\nשגיאה:\n" + errMsg + "\n\nהשאילתה המקורית:\n" + badSQL + "\n\nתקן בבקשה:"},
	}
	res, err := e.completer.Chat(ctx, llm.PurposeFixer, msgs)
	if err != nil {
		return "", err
	}
	return UnwrapSQL(res.Content), nil
}

func preview(sql string) string {
	if len(sql) > 100 {
		return sql[:100] + "..."
	}
	return sql
}
