package agent

import (
	"context"
	"regexp"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/session"
)

// Deterministic overrides applied after the model call, first match wins.
// Order matters: the meta-recall patterns are checked before the forecast
// pattern so a message matching both is treated as meta.
var overrideRules = []struct {
	re       *regexp.Regexp
	decision string
}{
	{regexp.MustCompile(`(?i)(מה\s+שאלתי|מה\s+היית[ה]?|הזכר\s+לי)`), DecisionMeta},
	{regexp.MustCompile(`(?i)(איזה|מה).*?(נתונים|מידע|data|sql|שאלתה|שאילתה).*?(הוצאת|קיבלת|הראית|הצגת|בוצע)`), DecisionMeta},
	{regexp.MustCompile(`(?i)(חיזוי|תחזית|forecast|trend|projection|predict|לחזות)`), DecisionData},
}

// Classifier decides whether a message needs data, is free-form chat, or
// asks about the conversation itself.
type Classifier struct {
	completer Completer
	rules     Rules
}

func NewClassifier(completer Completer, rules Rules) *Classifier {
	return &Classifier{completer: completer, rules: rules}
}

// Classify calls the model once with the last few turns plus schema text,
// then applies the local overrides. The model decision is never retried.
func (c *Classifier) Classify(ctx context.Context, s *session.Session, userQ, schemaText string) (string, llm.Result, error) {
	msgs := []*schema.Message{
		{Role: schema.System, Content: "Schema:\n" + schemaText + "\n\nהחלט: data (שאלה נתונית), free (תשובה חופשית), meta (שאלה על השיחה)."},
	}
	if c.rules.StarHint != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: c.rules.StarHint})
	}
	msgs = append(msgs, historyMessages(s.History, 4)...)
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: userQ})

	var cls llm.ClassificationResult
	res, err := c.completer.CallFunction(ctx, llm.PurposeClassifier, msgs, &cls)
	if err != nil {
		return "", res, err
	}

	decision := cls.Decision
	if decision != DecisionData && decision != DecisionFree && decision != DecisionMeta {
		decision = DecisionFree
	}

	for _, rule := range overrideRules {
		if rule.re.MatchString(userQ) {
			decision = rule.decision
			break
		}
	}

	// A first turn cannot be meta, there is nothing to recall yet.
	if len(s.History) == 0 && decision == DecisionMeta {
		decision = DecisionFree
	}

	return decision, res, nil
}

// historyMessages converts the tail of session history into prompt turns.
func historyMessages(history []session.Message, n int) []*schema.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		out = append(out, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
	}
	return out
}
