package llm

import "github.com/cloudwego/eino/schema"

// ClassificationResult is the structured answer of the classify_query tool.
type ClassificationResult struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
}

// QueryAnalysis is the structured answer of the analyze_query tool.
type QueryAnalysis struct {
	Complexity       string   `json:"complexity"`
	Intent           string   `json:"intent"`
	RequiresJoins    bool     `json:"requires_joins"`
	TablesNeeded     []string `json:"tables_needed"`
	TemporalAnalysis string   `json:"temporal_analysis"`
	BusinessDomain   string   `json:"business_domain"`
}

// SQLBuildResult is the structured answer of the generate_sql tool.
type SQLBuildResult struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

func classifyQueryTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: "classify_query",
		Desc: "Classify the user's message. 'data' means it needs a database query, 'free' means general conversation, 'meta' means a question about the conversation itself (what was asked, what was shown).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"decision": {
				Type:     schema.String,
				Desc:     "One of: data, free, meta",
				Enum:     []string{"data", "free", "meta"},
				Required: true,
			},
			"confidence": {
				Type:     schema.Number,
				Desc:     "Confidence in the decision, 0.0 to 1.0",
				Required: true,
			},
		}),
	}
}

func analyzeQueryTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: "analyze_query",
		Desc: "Analyze a data question before SQL generation: complexity, intent, tables involved and temporal scope.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"complexity": {
				Type:     schema.String,
				Desc:     "Overall complexity of the question, from single-table aggregation up to multi-step window logic",
				Enum:     []string{"simple", "moderate", "complex", "very_complex"},
				Required: true,
			},
			"intent": {
				Type:     schema.String,
				Desc:     "Short description of what the user wants to see",
				Required: true,
			},
			"requires_joins": {
				Type:     schema.Boolean,
				Desc:     "Whether answering requires joining tables",
				Required: true,
			},
			"tables_needed": {
				Type:     schema.Array,
				Desc:     "Tables expected to participate in the query",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Required: true,
			},
			"temporal_analysis": {
				Type: schema.String,
				Desc: "Time range or period the question refers to, empty if none",
			},
			"business_domain": {
				Type: schema.String,
				Desc: "Business area of the question (sales, inventory, finance, ...)",
			},
		}),
	}
}

func generateSQLTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: "generate_sql",
		Desc: "Produce a single read-only SELECT statement answering the user's question against the provided schema. Never produce DDL or DML.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"sql": {
				Type:     schema.String,
				Desc:     "The complete SELECT statement",
				Required: true,
			},
			"explanation": {
				Type: schema.String,
				Desc: "One sentence describing what the query computes",
			},
		}),
	}
}
