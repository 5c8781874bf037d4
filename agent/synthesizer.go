package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/session"
)

// Synthesizer generates SQL for data questions, first via the single-shot
// fast path and, when that fails, via the analyze/plan/build fallback.
type Synthesizer struct {
	completer Completer
	rules     Rules
}

func NewSynthesizer(completer Completer, rules Rules) *Synthesizer {
	return &Synthesizer{completer: completer, rules: rules}
}

// FastSQL asks for SQL in one turn. The prompt carries the rule files and
// conversation context but no schema text, trading token cost for the
// chance the model already knows the right column names from the rules.
func (s *Synthesizer) FastSQL(ctx context.Context, sess *session.Session, userQ string) (string, llm.Result, error) {
	sys := "המר שאלה ל-SQL אנליטי. השתמש ב-SELECT בלבד, אל תבצע ALTER/INSERT/UPDATE/DELETE. אל תסביר, החזר רק את ה-SQL."
	if s.rules.Important != "" {
		sys += "\n" + s.rules.Important
	}
	if s.rules.ImportantCTI != "" {
		sys += "\n" + s.rules.ImportantCTI
	}
	if rc := sess.RecentContext(); rc != "" {
		sys += "\n" + rc
	}
	if sess.LastSQLSuccess != "" {
		sys += "\nSQL קודם: " + sess.LastSQLSuccess
	}

	res, err := s.completer.Chat(ctx, llm.PurposeChat, []*schema.Message{
		{Role: schema.System, Content: sys},
		{Role: schema.User, Content: userQ},
	})
	if err != nil {
		return "", res, err
	}
	return UnwrapSQL(res.Content), res, nil
}

// Analyze classifies the question's complexity, intent and table needs.
// A parse failure falls back to a conservative default analysis rather
// than failing the request.
func (s *Synthesizer) Analyze(ctx context.Context, sess *session.Session, userQ string) (llm.QueryAnalysis, llm.Result, error) {
	analysis := llm.QueryAnalysis{
		Complexity:     "simple",
		Intent:         "data_retrieval",
		BusinessDomain: "general",
	}

	msgs := []*schema.Message{
		{Role: schema.System, Content: "נתח שאילתות BI עבור מערכת ERP. זהה מורכבות, כוונה וטבלאות נדרשות.\n\n" + sess.RecentContext()},
		{Role: schema.User, Content: userQ},
	}
	var parsed llm.QueryAnalysis
	res, err := s.completer.CallFunction(ctx, llm.PurposeAnalyzer, msgs, &parsed)
	if err != nil {
		return analysis, res, err
	}
	if parsed.Complexity != "" {
		analysis = parsed
	}
	return analysis, res, nil
}

// Plan produces a free-form step-by-step SQL plan over the full schema.
func (s *Synthesizer) Plan(ctx context.Context, sess *session.Session, userQ, schemaText string) (string, llm.Result, error) {
	sys := fmt.Sprintf("תכנן SQL אנליטי. חשוב שלב אחר שלב.\n\nSchema:\n%s\n\n%s\n\n%s\n%s",
		schemaText, s.rules.Important, s.rules.ImportantCTI, sess.RecentContext())
	if len(sess.LastContext) > 0 {
		if ctxJSON, err := json.Marshal(sess.LastContext); err == nil {
			sys += "\nContextJSON:\n" + string(ctxJSON)
		}
	}

	res, err := s.completer.Chat(ctx, llm.PurposePlanner, []*schema.Message{
		{Role: schema.System, Content: sys},
		{Role: schema.User, Content: fmt.Sprintf("תכנן SQL עבור: %q", userQ)},
	})
	if err != nil {
		return "", res, err
	}
	return res.Content, res, nil
}

// Build turns a plan into one SQL statement via the generate_sql function.
func (s *Synthesizer) Build(ctx context.Context, sess *session.Session, userQ, plan string) (string, llm.Result, error) {
	sys := "בנה SQL אנליטי מיטבי.\nחובה להשתמש ב-SELECT בלבד. אל תבצע ALTER/INSERT/UPDATE/DELETE.\n" +
		"אסור להשתמש בעמודות שלא קיימות בסכמה. השתמש אך ורק בשמות עמודות שמופיעים במפורש ב-Schema.\n\n" +
		s.rules.Important + "\n\n" + s.rules.ImportantCTI
	if len(sess.LastContext) > 0 {
		if ctxJSON, err := json.Marshal(sess.LastContext); err == nil {
			sys += "\nContextJSON:\n" + string(ctxJSON)
		}
	}
	if sess.LastSQLSuccess != "" {
		sys += "\n-- שאילתה קודמת:\n" + sess.LastSQLSuccess
	}
	sys += "\n\nתכנית:\n" + plan

	var built llm.SQLBuildResult
	res, err := s.completer.CallFunction(ctx, llm.PurposeBuilder, []*schema.Message{
		{Role: schema.System, Content: sys},
		{Role: schema.User, Content: fmt.Sprintf("בנה SQL עבור: %q", userQ)},
	}, &built)
	if err != nil {
		return "", res, err
	}
	return UnwrapSQL(built.SQL), res, nil
}

// Summarize produces the short business narrative returned with a result.
func (s *Synthesizer) Summarize(ctx context.Context, sess *session.Session, userQ string, rows []map[string]any) (string, llm.Result, error) {
	sample := rows
	if len(sample) > 2 {
		sample = sample[:2]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", llm.Result{}, err
	}

	res, err := s.completer.Chat(ctx, llm.PurposeSummarizer, []*schema.Message{
		{Role: schema.System, Content: "סכם בתובנות עסקיות קצרות. התייחס למידע עצמו ואל תספק מידע כללי אלא נקודתי.\n\n" + sess.RecentContext()},
		{Role: schema.User, Content: fmt.Sprintf("השאילתה: %q\nתוצאות (%d שורות):\n%s", userQ, len(rows), sampleJSON)},
	})
	if err != nil {
		return "", res, err
	}
	return res.Content, res, nil
}

// FreeAnswer handles conversational turns with the recent history.
func (s *Synthesizer) FreeAnswer(ctx context.Context, sess *session.Session, userQ string) (string, llm.Result, error) {
	msgs := []*schema.Message{
		{Role: schema.System, Content: "אתה עוזר BI חכם למערכת ERP. תן תשובות קצרות ומועילות."},
	}
	msgs = append(msgs, historyMessages(sess.History, 6)...)
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: userQ})

	res, err := s.completer.Chat(ctx, llm.PurposeChat, msgs)
	if err != nil {
		return "", res, err
	}
	return res.Content, res, nil
}
