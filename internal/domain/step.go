package domain

// StepType tags a step of the agent trace.
type StepType string

const (
	StepAI   StepType = "AI Message"
	StepTool StepType = "Tool Message"
)

// Step is one turn of the agent's conversation trace, in chronological order.
type Step struct {
	Type    StepType `json:"type"`
	Content string   `json:"content"`
}

// ChartData is a chart payload. Labels and Values are positionally paired.
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Len returns the number of label/value pairs.
func (c ChartData) Len() int {
	return len(c.Labels)
}
