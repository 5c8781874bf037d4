// Package llm wraps the eino chat-model layer behind a small purpose-keyed
// client. Each pipeline stage (classification, analysis, planning, SQL
// building, summarization, repair) gets its own model instance so that
// function tools can be bound once at startup without racing between calls.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/AdamZagri/aibi-server/config"
	"github.com/AdamZagri/aibi-server/logger"
)

// Purpose selects which model and bound function a call uses.
type Purpose string

const (
	PurposeChat       Purpose = "chat"
	PurposeClassifier Purpose = "classifier"
	PurposeAnalyzer   Purpose = "analyzer"
	PurposePlanner    Purpose = "planner"
	PurposeBuilder    Purpose = "builder"
	PurposeSummarizer Purpose = "summarizer"
	PurposeFixer      Purpose = "fixer"
)

// Result carries the text and accounting of a single model call.
type Result struct {
	Content string
	Model   string
	Usage   Usage
	Cost    float64
}

// Client holds one chat model per purpose.
type Client struct {
	models  map[Purpose]model.ChatModel
	names   map[Purpose]string
	timeout time.Duration
	log     *logger.Logger
}

// purposeModels maps each purpose to its configured model name and the
// function tool bound to it (nil for plain-text purposes).
func purposeModels(cfg config.Config) map[Purpose]struct {
	name string
	tool *schema.ToolInfo
} {
	m := cfg.Models
	return map[Purpose]struct {
		name string
		tool *schema.ToolInfo
	}{
		PurposeChat:       {m.Chat, nil},
		PurposeClassifier: {m.Chat, classifyQueryTool()},
		PurposeAnalyzer:   {m.Analyzer, analyzeQueryTool()},
		PurposePlanner:    {m.Planner, nil},
		PurposeBuilder:    {m.Builder, generateSQLTool()},
		PurposeSummarizer: {m.Summarizer, nil},
		PurposeFixer:      {m.Fixer, nil},
	}
}

// NewClient builds the per-purpose model instances.
func NewClient(ctx context.Context, cfg config.Config, log *logger.Logger) (*Client, error) {
	c := &Client{
		models:  make(map[Purpose]model.ChatModel),
		names:   make(map[Purpose]string),
		timeout: cfg.LLMTimeout,
		log:     log,
	}

	for purpose, mc := range purposeModels(cfg) {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   mc.name,
		})
		if err != nil {
			return nil, fmt.Errorf("create chat model for %s: %w", purpose, err)
		}
		if mc.tool != nil {
			if err := cm.BindTools([]*schema.ToolInfo{mc.tool}); err != nil {
				return nil, fmt.Errorf("bind %s tool: %w", mc.tool.Name, err)
			}
		}
		c.models[purpose] = cm
		c.names[purpose] = mc.name
	}

	return c, nil
}

// Chat runs a plain-text completion against the purpose's model.
func (c *Client) Chat(ctx context.Context, purpose Purpose, msgs []*schema.Message) (Result, error) {
	resp, res, err := c.generate(ctx, purpose, msgs)
	if err != nil {
		return Result{}, err
	}
	res.Content = resp.Content
	return res, nil
}

// CallFunction runs a completion on a model with a bound function tool and
// unmarshals the tool-call arguments into out. When the model answers with
// plain text instead of calling the tool, the content is tried as JSON
// before giving up.
func (c *Client) CallFunction(ctx context.Context, purpose Purpose, msgs []*schema.Message, out any) (Result, error) {
	resp, res, err := c.generate(ctx, purpose, msgs)
	if err != nil {
		return Result{}, err
	}

	var raw string
	if len(resp.ToolCalls) > 0 {
		raw = resp.ToolCalls[0].Function.Arguments
	} else {
		raw = stripCodeFence(resp.Content)
	}
	res.Content = raw

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return res, fmt.Errorf("%s returned unparseable arguments: %w", purpose, err)
	}
	return res, nil
}

func (c *Client) generate(ctx context.Context, purpose Purpose, msgs []*schema.Message) (*schema.Message, Result, error) {
	cm, ok := c.models[purpose]
	if !ok {
		return nil, Result{}, fmt.Errorf("unknown llm purpose %q", purpose)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := cm.Generate(ctx, msgs)
	if err != nil {
		return nil, Result{}, fmt.Errorf("llm %s call failed: %w", purpose, err)
	}

	res := Result{Model: c.names[purpose]}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		u := resp.ResponseMeta.Usage
		res.Usage = Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
		res.Cost = CalcCost(res.Model, res.Usage)
	}

	c.log.Debug("llm call done",
		"purpose", purpose,
		"model", res.Model,
		"tokens", res.Usage.TotalTokens,
		"cost", res.Cost,
		"elapsed_ms", time.Since(start).Milliseconds())

	return resp, res, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
