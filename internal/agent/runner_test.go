package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sql-question-agent/internal/domain"
)

type scriptedLLM struct {
	replies  []domain.ChatMessage
	err      error
	calls    int
	lastMsgs []domain.ChatMessage
	lastSpec []domain.ToolSpec
	model    string
}

func (s *scriptedLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage, tools []domain.ToolSpec) (domain.ChatMessage, error) {
	s.model = model
	s.lastMsgs = append([]domain.ChatMessage(nil), msgs...)
	s.lastSpec = tools
	if s.err != nil {
		return domain.ChatMessage{}, s.err
	}
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return s.replies[idx], nil
}

type stubTool struct {
	name string
	out  string
	err  error
	args []string
}

func (t *stubTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{Name: t.name, Description: "stub " + t.name}
}

func (t *stubTool) Call(_ context.Context, args string) (string, error) {
	t.args = append(t.args, args)
	return t.out, t.err
}

func toolCall(id, name, args string) domain.ChatMessage {
	return domain.ChatMessage{Role: "assistant", ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: args}}}
}

func newRunner(t *testing.T, llm LLM, maxIter int) *Runner {
	t.Helper()
	r, err := NewRunner(llm, maxIter, nil)
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, 5, nil)
	require.Error(t, err)

	r, err := NewRunner(&scriptedLLM{}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, defaultMaxIterations, r.maxIterations)
}

func TestRun_ToolRoundTrip(t *testing.T) {
	query := &stubTool{name: "sql_db_query", out: "[(1344, 6, 2023), (951, 7, 2023)]"}
	llm := &scriptedLLM{replies: []domain.ChatMessage{
		toolCall("call_1", "sql_db_query", `{"query":"SELECT COUNT(*), MONTH(statusdate), YEAR(statusdate) FROM src.vw_Maximo_WorkOrders"}`),
		{Role: "assistant", Content: "June 2023 had 1,344 work orders and July 2023 had 951."},
	}}
	r := newRunner(t, llm, 5)

	steps, err := r.Run(context.Background(), Request{
		Model:        "gpt-4o-mini",
		SystemPrompt: "system prompt",
		History:      []domain.ChatMessage{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "earlier answer"}},
		Question:     "Work orders per month in mid 2023?",
		Tools:        []Tool{query},
	})
	require.NoError(t, err)
	require.Equal(t, []domain.Step{
		{Type: domain.StepAI, Content: `sql_db_query {"query":"SELECT COUNT(*), MONTH(statusdate), YEAR(statusdate) FROM src.vw_Maximo_WorkOrders"}`},
		{Type: domain.StepTool, Content: "[(1344, 6, 2023), (951, 7, 2023)]"},
		{Type: domain.StepAI, Content: "June 2023 had 1,344 work orders and July 2023 had 951."},
	}, steps)

	require.Equal(t, "gpt-4o-mini", llm.model)
	require.Len(t, llm.lastSpec, 1)
	require.Len(t, query.args, 1)

	// system, history x2, user, assistant tool call, tool result
	require.Len(t, llm.lastMsgs, 6)
	require.Equal(t, "system", llm.lastMsgs[0].Role)
	require.Equal(t, "earlier", llm.lastMsgs[1].Content)
	require.Equal(t, "Work orders per month in mid 2023?", llm.lastMsgs[3].Content)
	require.Equal(t, "tool", llm.lastMsgs[5].Role)
	require.Equal(t, "call_1", llm.lastMsgs[5].ToolCallID)
	require.Equal(t, "sql_db_query", llm.lastMsgs[5].Name)
}

func TestRun_ToolErrorsAreFedBack(t *testing.T) {
	failing := &stubTool{name: "sql_db_query", err: errors.New("Invalid column name 'workype_description'")}
	llm := &scriptedLLM{replies: []domain.ChatMessage{
		toolCall("c1", "sql_db_query", `{"query":"SELECT workype_description FROM t"}`),
		toolCall("c2", "sql_db_drop", `{}`),
		{Role: "assistant", Content: "I could not answer."},
	}}
	r := newRunner(t, llm, 5)

	steps, err := r.Run(context.Background(), Request{Model: "m", Question: "q", Tools: []Tool{failing, &stubTool{name: "sql_db_list_tables"}}})
	require.NoError(t, err)
	require.Len(t, steps, 5)
	require.Equal(t, "Error: Invalid column name 'workype_description'", steps[1].Content)
	require.Equal(t, "Error: sql_db_drop is not a valid tool, try one of [sql_db_list_tables, sql_db_query].", steps[3].Content)
	require.Equal(t, domain.StepTool, steps[3].Type)
}

func TestRun_IterationLimit(t *testing.T) {
	llm := &scriptedLLM{replies: []domain.ChatMessage{toolCall("c", "sql_db_list_tables", "{}")}}
	r := newRunner(t, llm, 2)

	steps, err := r.Run(context.Background(), Request{Model: "m", Question: "q", Tools: []Tool{&stubTool{name: "sql_db_list_tables", out: "a, b"}}})
	require.ErrorIs(t, err, ErrIterationLimit)
	require.Len(t, steps, 4)
	require.Equal(t, 2, llm.calls)
}

func TestRun_LLMErrorKeepsPartialSteps(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("upstream down")}
	r := newRunner(t, llm, 3)

	steps, err := r.Run(context.Background(), Request{Model: "m", Question: "q"})
	require.ErrorContains(t, err, "upstream down")
	require.Empty(t, steps)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, &scriptedLLM{replies: []domain.ChatMessage{{Content: "x"}}}, 3)

	_, err := r.Run(ctx, Request{Model: "m", Question: "q"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyQuestion(t *testing.T) {
	r := newRunner(t, &scriptedLLM{}, 3)
	_, err := r.Run(context.Background(), Request{Model: "m", Question: "  "})
	require.Error(t, err)
}

func TestDescribeReply(t *testing.T) {
	require.Equal(t, "answer", describeReply(domain.ChatMessage{Content: "answer"}))
	require.Equal(t, "thinking", describeReply(domain.ChatMessage{Content: "thinking", ToolCalls: []domain.ToolCall{{Name: "x"}}}))
	require.Equal(t, "a {}\nb {\"k\":1}", describeReply(domain.ChatMessage{ToolCalls: []domain.ToolCall{
		{Name: "a", Arguments: "{}"},
		{Name: "b", Arguments: `{"k":1}`},
	}}))
}
