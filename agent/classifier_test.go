package agent

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/session"
)

// classifierWithModelDecision fakes the model's 3-way call.
func classifierWithModelDecision(decision string) *Classifier {
	return NewClassifier(&fakeCompleter{
		callFn: func(_ llm.Purpose, _ []*schema.Message, out any) (llm.Result, error) {
			return llm.Result{}, decodeInto(out, llm.ClassificationResult{Decision: decision, Confidence: 0.9})
		},
	}, Rules{})
}

func sessionWithTurns(n int) *session.Session {
	s, _ := session.NewRepository(0).GetOrCreate("11111111-1111-1111-1111-111111111111")
	for i := 0; i < n; i++ {
		s.Append(500, session.Message{Role: "user", Content: "שאלה"})
	}
	return s
}

func TestClassify_MetaRecallOverride(t *testing.T) {
	// The model says data; the recall pattern must win.
	c := classifierWithModelDecision(DecisionData)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "מה שאלתי קודם?", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionMeta {
		t.Errorf("decision = %q, want meta", got)
	}
}

func TestClassify_DataShownOverride(t *testing.T) {
	c := classifierWithModelDecision(DecisionFree)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "איזה נתונים הצגת לי?", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionMeta {
		t.Errorf("decision = %q, want meta", got)
	}
}

func TestClassify_ForecastOverride(t *testing.T) {
	c := classifierWithModelDecision(DecisionFree)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "תן לי תחזית מכירות לרבעון הבא", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionData {
		t.Errorf("decision = %q, want data", got)
	}
}

func TestClassify_MetaBeatsForecastWhenBothMatch(t *testing.T) {
	// The recall pattern is checked before the forecast pattern.
	c := classifierWithModelDecision(DecisionData)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "הזכר לי מה הייתה התחזית", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionMeta {
		t.Errorf("decision = %q, want meta", got)
	}
}

func TestClassify_FirstTurnMetaBecomesFree(t *testing.T) {
	c := classifierWithModelDecision(DecisionMeta)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(0), "שלום, מי אתה?", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionFree {
		t.Errorf("decision = %q, want free on a first turn", got)
	}
}

func TestClassify_TrustsModelOtherwise(t *testing.T) {
	c := classifierWithModelDecision(DecisionData)
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "כמה מכרנו ללקוח הגדול?", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionData {
		t.Errorf("decision = %q, want data", got)
	}
}

func TestClassify_UnknownDecisionDefaultsToFree(t *testing.T) {
	c := classifierWithModelDecision("banana")
	got, _, err := c.Classify(context.Background(), sessionWithTurns(2), "שאלה כלשהי", testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != DecisionFree {
		t.Errorf("decision = %q, want free", got)
	}
}
