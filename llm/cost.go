package llm

// Usage mirrors the token accounting returned with each completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type modelPrice struct {
	input  float64 // USD per 1K prompt tokens
	output float64 // USD per 1K completion tokens
}

var prices = map[string]modelPrice{
	"gpt-4o-mini":   {input: 0.00015, output: 0.0006},
	"gpt-4o":        {input: 0.0025, output: 0.01},
	"gpt-4":         {input: 0.03, output: 0.06},
	"gpt-3.5-turbo": {input: 0.0015, output: 0.002},
}

// defaultPrice is used for unknown models (gpt-4o-mini rates).
var defaultPrice = modelPrice{input: 0.00015, output: 0.0006}

// CalcCost returns the USD cost of a single call.
func CalcCost(model string, u Usage) float64 {
	p, ok := prices[model]
	if !ok {
		p = defaultPrice
	}
	return float64(u.PromptTokens)/1000*p.input + float64(u.CompletionTokens)/1000*p.output
}
