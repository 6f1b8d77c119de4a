// Package agent runs a tool-calling loop against a chat model and records the
// conversation as a chronological list of steps.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"sql-question-agent/internal/domain"
	"sql-question-agent/internal/metrics"
)

const defaultMaxIterations = 15

// ErrIterationLimit is returned when the model keeps calling tools past the
// configured number of rounds.
var ErrIterationLimit = errors.New("agent: iteration limit reached")

// Tool is a function the model may call. Call receives the raw JSON arguments
// produced by the model.
type Tool interface {
	Spec() domain.ToolSpec
	Call(ctx context.Context, args string) (string, error)
}

type LLM interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolSpec) (domain.ChatMessage, error)
}

type Runner struct {
	llm           LLM
	maxIterations int
	logger        *slog.Logger
}

type Request struct {
	Model        string
	SystemPrompt string
	History      []domain.ChatMessage
	Question     string
	Tools        []Tool
}

func NewRunner(llm LLM, maxIterations int, logger *slog.Logger) (*Runner, error) {
	if llm == nil {
		return nil, errors.New("agent: llm must not be nil")
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{llm: llm, maxIterations: maxIterations, logger: logger}, nil
}

// Run drives the model until it answers without calling tools. The returned
// steps are valid even when err is non-nil and hold everything produced
// before the failure.
func (r *Runner) Run(ctx context.Context, req Request) ([]domain.Step, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("agent: question must not be empty")
	}

	tools := make(map[string]Tool, len(req.Tools))
	specs := make([]domain.ToolSpec, 0, len(req.Tools))
	for _, t := range req.Tools {
		spec := t.Spec()
		tools[spec.Name] = t
		specs = append(specs, spec)
	}

	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.History...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: req.Question})

	var steps []domain.Step
	for i := 0; i < r.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		reply, err := r.llm.Chat(ctx, req.Model, messages, specs)
		if err != nil {
			return steps, fmt.Errorf("agent: chat: %w", err)
		}
		reply.Role = "assistant"
		messages = append(messages, reply)
		steps = append(steps, domain.Step{Type: domain.StepAI, Content: describeReply(reply)})

		if len(reply.ToolCalls) == 0 {
			return steps, nil
		}

		for _, call := range reply.ToolCalls {
			result := r.callTool(ctx, tools, call)
			messages = append(messages, domain.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
			steps = append(steps, domain.Step{Type: domain.StepTool, Content: result})
		}
	}
	return steps, ErrIterationLimit
}

// callTool runs one tool call. Failures become the tool's output so the model
// can correct itself.
func (r *Runner) callTool(ctx context.Context, tools map[string]Tool, call domain.ToolCall) string {
	tool, ok := tools[call.Name]
	if !ok {
		r.logger.WarnContext(ctx, "model called unknown tool", "tool", call.Name)
		metrics.RecordToolCall("unknown", errors.New("unknown tool"))
		return fmt.Sprintf("Error: %s is not a valid tool, try one of [%s].", call.Name, toolNames(tools))
	}

	out, err := tool.Call(ctx, call.Arguments)
	metrics.RecordToolCall(call.Name, err)
	if err != nil {
		r.logger.DebugContext(ctx, "tool call failed", "tool", call.Name, "err", err)
		return "Error: " + err.Error()
	}
	r.logger.DebugContext(ctx, "tool call", "tool", call.Name, "bytes", len(out))
	return out
}

// describeReply renders an assistant turn for the trace. Turns that only call
// tools have no content, so the calls themselves are shown.
func describeReply(reply domain.ChatMessage) string {
	if len(reply.ToolCalls) == 0 || strings.TrimSpace(reply.Content) != "" {
		return reply.Content
	}
	lines := make([]string, 0, len(reply.ToolCalls))
	for _, c := range reply.ToolCalls {
		lines = append(lines, fmt.Sprintf("%s %s", c.Name, c.Arguments))
	}
	return strings.Join(lines, "\n")
}

func toolNames(tools map[string]Tool) string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
