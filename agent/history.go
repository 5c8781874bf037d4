package agent

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/session"
)

const (
	// compactChunk is how many of the oldest messages one compaction
	// replaces with a single summary message.
	compactChunk = 10

	// insufficientSentinel is the model's signal that the cached sample
	// cannot answer the question.
	insufficientSentinel = "INSUFFICIENT"
)

// Historian owns history compaction, the cached-answer shortcut and meta
// answers. All three lean on the summarizer model.
type Historian struct {
	completer    Completer
	compactAfter int
	historyLimit int
}

func NewHistorian(completer Completer, compactAfter, historyLimit int) *Historian {
	return &Historian{completer: completer, compactAfter: compactAfter, historyLimit: historyLimit}
}

// Compact summarizes the oldest messages once history outgrows the soft
// threshold: the slice is replaced with one system summary message, and
// the summary is also kept on a side list for audit. A summarizer failure
// leaves history untouched.
func (h *Historian) Compact(ctx context.Context, s *session.Session) error {
	if len(s.History) <= h.compactAfter {
		return nil
	}

	// The threshold is configurable and may sit below the chunk size;
	// never slice past the history that actually exists.
	n := compactChunk
	if n > len(s.History) {
		n = len(s.History)
	}
	chunk := s.History[:n]
	var b strings.Builder
	for _, m := range chunk {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}

	res, err := h.completer.Chat(ctx, llm.PurposeSummarizer, []*schema.Message{
		{Role: schema.System, Content: "סכם בקצרה וענייניות את מקטע השיחה המצורף."},
		{Role: schema.User, Content: b.String()},
	})
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(res.Content)

	rest := s.History[n:]
	s.History = append([]session.Message{{Role: "system", Content: "סיכום: " + summary}}, rest...)
	s.Summaries = append(s.Summaries, summary)
	s.AddCost(res.Cost)
	return nil
}

// TryAnswerFromCache attempts to answer userQ from the last result alone.
// Returns ("", nil) when there is no cache or the model says it is not
// enough; the caller then runs the normal pipeline.
func (h *Historian) TryAnswerFromCache(ctx context.Context, s *session.Session, userQ string) (string, error) {
	if s.LastData == nil || len(s.LastData.Rows) == 0 {
		return "", nil
	}

	sample := s.LastData.Rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return "", err
	}

	res, err := h.completer.Chat(ctx, llm.PurposeSummarizer, []*schema.Message{
		{Role: schema.System, Content: "ענה על השאלה על-סמך הנתונים המצורפים בלבד. אם אי-אפשר, השב במילה INSUFFICIENT."},
		{Role: schema.User, Content: "השאלה: " + userQ + "\nדגימת נתונים (" + strconv.Itoa(len(s.LastData.Rows)) + " שורות):\n" + string(sampleJSON)},
	})
	if err != nil {
		return "", err
	}
	s.AddCost(res.Cost)

	answer := strings.TrimSpace(res.Content)
	if strings.HasPrefix(strings.ToUpper(answer), insufficientSentinel) {
		return "", nil
	}
	return answer, nil
}

// AnswerMeta answers a question about the conversation itself from recent
// history.
func (h *Historian) AnswerMeta(ctx context.Context, s *session.Session, userQ string) (string, llm.Result, error) {
	recent := s.History
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	compact := make([]map[string]string, 0, len(recent))
	for _, m := range recent {
		compact = append(compact, map[string]string{"role": m.Role, "content": m.Content})
	}
	historyJSON, err := json.Marshal(compact)
	if err != nil {
		return "", llm.Result{}, err
	}

	res, err := h.completer.Chat(ctx, llm.PurposeSummarizer, []*schema.Message{
		{Role: schema.System, Content: "ענה בקצרה ומדויק לשאלה מטא בהתבסס על היסטוריית השיחה המצורפת."},
		{Role: schema.System, Content: "היסטוריה:\n" + string(historyJSON)},
		{Role: schema.User, Content: userQ},
	})
	if err != nil {
		return "", res, err
	}
	return strings.TrimSpace(res.Content), res, nil
}
