package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AdamZagri/aibi-server/logger"
	"github.com/AdamZagri/aibi-server/session"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Pipeline wires the full per-request flow: classification, cache
// shortcut, fast path, fallback synthesis, guarded execution and history
// upkeep. One Pipeline serves all conversations.
type Pipeline struct {
	repo        *session.Repository
	classifier  *Classifier
	synth       *Synthesizer
	historian   *Historian
	executor    *Executor
	querier     Querier
	schemaCache *SchemaCache
	notifier    Notifier
	log         *logger.Logger

	historyLimit int
}

func NewPipeline(
	repo *session.Repository,
	classifier *Classifier,
	synth *Synthesizer,
	historian *Historian,
	executor *Executor,
	querier Querier,
	schemaCache *SchemaCache,
	notifier Notifier,
	historyLimit int,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		repo:         repo,
		classifier:   classifier,
		synth:        synth,
		historian:    historian,
		executor:     executor,
		querier:      querier,
		schemaCache:  schemaCache,
		notifier:     notifier,
		historyLimit: historyLimit,
		log:          log,
	}
}

// Handle processes one chat message end to end. The session is locked for
// the whole request so two concurrent messages on the same conversation
// cannot interleave their history updates.
func (p *Pipeline) Handle(ctx context.Context, req Request) *Response {
	started := time.Now()

	userQ := strings.TrimSpace(req.Message)
	// A clarification reply re-runs the whole request with the chosen
	// identifier substituted into the question text.
	if c := req.Clarification; c != nil && c.Original != "" && c.Selected != "" {
		userQ = strings.ReplaceAll(userQ, c.Original, c.Selected)
	}

	chatID := req.ChatID
	if chatID == "" || !uuidRe.MatchString(strings.ToLower(chatID)) {
		chatID = uuid.NewString()
	}
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	p.notify(messageID, "שאלה התקבלה", started, nil)

	sess, created := p.repo.GetOrCreate(chatID)
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if req.UserEmail != "" && sess.UserEmail == "" {
		sess.UserEmail = req.UserEmail
		sess.UserName = req.UserName
	}
	if created {
		p.log.Info("new session created", "chat_id", chatID, "user", sess.UserEmail, "total_sessions", p.repo.Len())
	}

	if err := p.schemaCache.Refresh(ctx); err != nil {
		p.log.Warn("schema refresh failed, serving previous snapshot", "error", err)
	}
	p.notify(messageID, "רענון סכימה", started, nil)
	schemaText := p.schemaCache.Text()

	p.notify(messageID, "סיווג שאלה", started, nil)
	decision, clsRes, err := p.classifier.Classify(ctx, sess, userQ, schemaText)
	if err != nil {
		p.log.Error("classification failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "אירעה שגיאה בסיווג השאלה, נסה שוב.")
	}
	sess.AddCost(clsRes.Cost)
	p.notify(messageID, "החלטה: "+decisionLabel(decision), started, decision)

	var resp *Response
	switch decision {
	case DecisionMeta:
		resp = p.handleMeta(ctx, sess, userQ, messageID, chatID, started)
	case DecisionFree:
		resp = p.handleFree(ctx, sess, userQ, messageID, chatID, started)
	default:
		resp = p.handleData(ctx, sess, userQ, schemaText, messageID, chatID, started)
	}

	total := time.Since(started)
	p.notify(messageID, "סיום עיבוד", started, nil)
	p.notify(messageID, fmt.Sprintf("זמן: %.2fs", total.Seconds()), started, nil)
	return resp
}

func (p *Pipeline) handleMeta(ctx context.Context, sess *session.Session, userQ, messageID, chatID string, started time.Time) *Response {
	sess.Append(p.historyLimit, session.Message{Role: "user", Content: userQ})

	reply, res, err := p.historian.AnswerMeta(ctx, sess, userQ)
	if err != nil {
		p.log.Error("meta answer failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "לא הצלחתי לענות על השאלה, נסה שוב.")
	}
	sess.AddCost(res.Cost)
	sess.Append(p.historyLimit, session.Message{
		Role: "assistant", Content: reply,
		Tokens: res.Usage.TotalTokens, Model: res.Model, Cost: res.Cost,
	})

	return &Response{
		MessageID:      messageID,
		ChatID:         chatID,
		Reply:          reply,
		VizType:        VizNone,
		Data:           &Data{Columns: []string{}, Rows: [][]any{}},
		ProcessingTime: time.Since(started).Milliseconds(),
	}
}

func (p *Pipeline) handleFree(ctx context.Context, sess *session.Session, userQ, messageID, chatID string, started time.Time) *Response {
	sess.Append(p.historyLimit, session.Message{Role: "user", Content: userQ})

	reply, res, err := p.synth.FreeAnswer(ctx, sess, userQ)
	if err != nil {
		p.log.Error("free answer failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "לא הצלחתי לענות על השאלה, נסה שוב.")
	}
	sess.AddCost(res.Cost)
	sess.Append(p.historyLimit, session.Message{
		Role: "assistant", Content: reply,
		Tokens: res.Usage.TotalTokens, Model: res.Model, Cost: res.Cost,
	})

	if err := p.historian.Compact(ctx, sess); err != nil {
		p.log.Warn("history compaction failed", "error", err)
	}

	return &Response{
		MessageID:      messageID,
		ChatID:         chatID,
		Reply:          reply,
		VizType:        VizNone,
		Data:           &Data{Columns: []string{}, Rows: [][]any{}},
		ProcessingTime: time.Since(started).Milliseconds(),
	}
}

func (p *Pipeline) handleData(ctx context.Context, sess *session.Session, userQ, schemaText, messageID, chatID string, started time.Time) *Response {
	sess.Append(p.historyLimit, session.Message{Role: "user", Content: userQ})

	// Cache shortcut: a follow-up the last result already answers skips
	// SQL generation entirely.
	if answer, err := p.historian.TryAnswerFromCache(ctx, sess, userQ); err != nil {
		p.log.Warn("cache answer attempt failed", "error", err)
	} else if answer != "" {
		p.notify(messageID, "תשובה מהמטמון", started, nil)
		sess.Append(p.historyLimit, session.Message{Role: "assistant", Content: answer})
		return &Response{
			MessageID:      messageID,
			ChatID:         chatID,
			Reply:          answer,
			Cache:          true,
			VizType:        VizNone,
			Data:           &Data{Columns: []string{}, Rows: [][]any{}},
			ProcessingTime: time.Since(started).Milliseconds(),
		}
	}

	// Fast path: one shot, one execution, no refine loop.
	p.notify(messageID, "Fast Path", started, nil)
	if resp := p.tryFastPath(ctx, sess, userQ, messageID, chatID, started); resp != nil {
		return resp
	}

	p.notify(messageID, "מעבר ל-Pipeline המלא", started, nil)

	p.notify(messageID, "שלב ניתוח", started, nil)
	analysis, aRes, err := p.synth.Analyze(ctx, sess, userQ)
	if err != nil {
		p.log.Error("query analysis failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "ניתוח השאלה נכשל, נסה לנסח מחדש.")
	}
	sess.AddCost(aRes.Cost)
	sess.AddQuery(session.QueryRecord{Query: userQ, Complexity: analysis.Complexity, Domain: analysis.BusinessDomain})

	p.notify(messageID, "שלב תכנון", started, nil)
	plan, pRes, err := p.synth.Plan(ctx, sess, userQ, schemaText)
	if err != nil {
		p.log.Error("planning failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "תכנון השאילתה נכשל, נסה שוב.")
	}
	sess.AddCost(pRes.Cost)

	p.notify(messageID, "שלב בניית SQL", started, nil)
	sqlText, bRes, err := p.synth.Build(ctx, sess, userQ, plan)
	if err != nil {
		p.log.Error("sql build failed", "error", err)
		return p.errorResponse(messageID, chatID, started, "בניית השאילתה נכשלה, נסה שוב.")
	}
	sess.AddCost(bRes.Cost)

	p.notify(messageID, "הרצת SQL", started, sqlText)
	outcome, err := p.executor.Run(ctx, sqlText, userQ, schemaText, messageID, p.notifier, started)
	if err != nil {
		return p.executionFailure(sess, err, messageID, chatID, started)
	}

	meta := &Metadata{
		Complexity: analysis.Complexity,
		Intent:     analysis.Intent,
		Attempts:   outcome.Attempts,
	}
	return p.finishDataTurn(ctx, sess, userQ, outcome, meta, messageID, chatID, started)
}

// tryFastPath returns a completed response, or nil to fall through to the
// full pipeline. Fast-path failures are logged but never surfaced.
func (p *Pipeline) tryFastPath(ctx context.Context, sess *session.Session, userQ, messageID, chatID string, started time.Time) *Response {
	fastSQL, res, err := p.synth.FastSQL(ctx, sess, userQ)
	if err != nil {
		p.log.Warn("fast path generation failed", "error", err)
		return nil
	}
	sess.AddCost(res.Cost)

	if err := GuardSQL(fastSQL); err != nil {
		p.log.Warn("fast path sql rejected by guard", "sql_preview", preview(fastSQL))
		return nil
	}

	result, err := p.querier.Query(ctx, fastSQL)
	if err != nil || len(result.Rows) == 0 {
		reason := "no rows returned"
		if err != nil {
			reason = err.Error()
		}
		p.log.Info("fast path failed, falling back", "reason", reason)
		p.notify(messageID, "Fast SQL נכשל", started, reason)
		return nil
	}

	p.notify(messageID, "Fast SQL הצליח", started, fastSQL)
	sess.AddQuery(session.QueryRecord{Query: userQ, Complexity: "simple"})

	outcome := &ExecOutcome{Result: result, SQL: fastSQL, Attempts: 1}
	meta := &Metadata{FastPath: true}
	return p.finishDataTurn(ctx, sess, userQ, outcome, meta, messageID, chatID, started)
}

// finishDataTurn does the shared tail of both data paths: profile, chart
// choice, narrative summary, context extraction and session bookkeeping.
func (p *Pipeline) finishDataTurn(ctx context.Context, sess *session.Session, userQ string, outcome *ExecOutcome, meta *Metadata, messageID, chatID string, started time.Time) *Response {
	result := outcome.Result

	p.notify(messageID, "בחירת ויזואליזציה", started, nil)
	profile := ProfileRows(result.Columns, result.Rows)
	viz := ChooseViz(ExplicitIntent(userQ), profile)

	p.notify(messageID, "יצירת סיכום", started, nil)
	reply, sRes, err := p.synth.Summarize(ctx, sess, userQ, result.Rows)
	if err != nil {
		p.log.Warn("summary generation failed", "error", err)
		reply = fmt.Sprintf("השאילתה הוחזרה עם %d שורות.", len(result.Rows))
	} else {
		sess.AddCost(sRes.Cost)
	}
	reply = StripLongLists(reply, 20)
	reply = AppendInsights(reply, DataInsights(profile, result.Rows))

	extracted := ExtractContext(result.Rows)
	sess.LastContext = extracted
	sess.SetLastData(outcome.SQL, result.Columns, result.Rows)

	stored := result.Rows
	if len(stored) > session.MaxCachedRows {
		stored = stored[:session.MaxCachedRows]
	}
	sess.Append(p.historyLimit, session.Message{
		Role: "assistant", Content: reply, SQL: outcome.SQL, Data: stored,
		Tokens: sRes.Usage.TotalTokens, Model: sRes.Model, Cost: sRes.Cost,
	})
	if len(extracted) > 0 {
		if ctxJSON := marshalContext(extracted); ctxJSON != "" {
			sess.Append(p.historyLimit, session.Message{Role: "system", Content: "CTX: " + ctxJSON})
		}
	}

	if err := p.historian.Compact(ctx, sess); err != nil {
		p.log.Warn("history compaction failed", "error", err)
	}

	meta.ExecutionTime = result.ExecutionTime.Milliseconds()
	meta.ProcessingTime = time.Since(started).Milliseconds()
	meta.TotalCost = sess.TotalCost

	p.logQuerySummary(messageID, userQ, outcome, meta, reply)

	return &Response{
		MessageID: messageID,
		ChatID:    chatID,
		Reply:     reply,
		SQL:       outcome.SQL,
		Viz:       viz,
		Data:      positionalData(result),
		Metadata:  meta,
	}
}

// executionFailure maps executor errors to their caller-facing shapes.
// Clarifications are a normal alternate response; everything else is
// terminal and still recorded in history so later meta-questions can
// reference it.
func (p *Pipeline) executionFailure(sess *session.Session, err error, messageID, chatID string, started time.Time) *Response {
	if cn, ok := err.(*ClarificationNeeded); ok {
		reply := fmt.Sprintf("לא מצאתי %s בשם %q. האם התכוונת לאחת מהאפשרויות?",
			hebrewKind(cn.Missing.Type), cn.Missing.Name)
		sess.Append(p.historyLimit, session.Message{Role: "assistant", Content: reply})
		return &Response{
			MessageID:      messageID,
			ChatID:         chatID,
			Reply:          reply,
			Clarification:  true,
			Missing:        &Missing{Type: cn.Missing.Type, Name: cn.Missing.Name},
			Options:        cn.Candidates,
			ProcessingTime: time.Since(started).Milliseconds(),
		}
	}

	var reply string
	switch e := err.(type) {
	case *ExhaustedRetriesError:
		reply = fmt.Sprintf("השאילתה נכשלה לאחר %d ניסיונות. נסה לנסח את השאלה אחרת.", e.Attempts)
	default:
		if err == ErrWriteRejected {
			p.log.Error("write operation rejected at execution", "message_id", messageID)
			sess.Flags["write_rejected"] = true
			reply = "פעולות כתיבה אינן מותרות, ניתן להריץ שאילתות קריאה בלבד."
		} else {
			reply = "הרצת השאילתה נכשלה, נסה שוב."
		}
	}
	sess.Append(p.historyLimit, session.Message{Role: "assistant", Content: reply})
	return p.errorResponse(messageID, chatID, started, reply)
}

func (p *Pipeline) errorResponse(messageID, chatID string, started time.Time, reply string) *Response {
	return &Response{
		MessageID:      messageID,
		ChatID:         chatID,
		Reply:          reply,
		Error:          true,
		ProcessingTime: time.Since(started).Milliseconds(),
	}
}

func (p *Pipeline) notify(messageID, statusText string, started time.Time, data any) {
	p.notifier.Notify(messageID, statusText, time.Since(started), data)
}

func (p *Pipeline) logQuerySummary(messageID, userQ string, outcome *ExecOutcome, meta *Metadata, reply string) {
	path := "pipeline"
	if meta.FastPath {
		path = "fast"
	}
	p.log.Info("query summary",
		"message_id", messageID,
		"path", path,
		"question", userQ,
		"sql", outcome.SQL,
		"rows", len(outcome.Result.Rows),
		"attempts", outcome.Attempts,
		"execution_ms", meta.ExecutionTime,
		"processing_ms", meta.ProcessingTime,
		"reply_len", len(reply))
}

// positionalData converts row maps to the wire shape of ordered columns
// plus positional values.
func positionalData(r *QueryResult) *Data {
	rows := make([][]any, 0, len(r.Rows))
	for _, m := range r.Rows {
		vals := make([]any, len(r.Columns))
		for i, c := range r.Columns {
			vals[i] = m[c]
		}
		rows = append(rows, vals)
	}
	return &Data{Columns: r.Columns, Rows: rows}
}

func decisionLabel(decision string) string {
	switch decision {
	case DecisionFree:
		return "תשובה חופשית"
	case DecisionData:
		return "שאלה נתונית"
	default:
		return "מטא"
	}
}

func hebrewKind(kind string) string {
	if kind == "table" {
		return "טבלה"
	}
	return "עמודה"
}

func marshalContext(ctx map[string]any) string {
	b, err := json.Marshal(ctx)
	if err != nil {
		return ""
	}
	return string(b)
}
