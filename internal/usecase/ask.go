package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sql-question-agent/internal/agent"
	"sql-question-agent/internal/domain"
	"sql-question-agent/internal/integrations/paramstore"
	"sql-question-agent/internal/metrics"
	"sql-question-agent/internal/visualize"
)

const (
	defaultMaxContext    = 20
	defaultMaxQuestion   = 500
	defaultTopK          = 5
	maxConversationTurns = 10
	statusComplete       = "complete"
	noAnswer             = "No answer generated."
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) ([]domain.Step, error)
}

// Toolbox hands out the database tools for one run.
type Toolbox interface {
	Tools(model string) []agent.Tool
	Dialect() string
	Schema() string
}

type StateReadWriter interface {
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	SaveCompletedTurn(ctx context.Context, turn domain.Turn) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type Settings struct {
	ParamPrefix     string
	MaxContextItems int
	MaxQuestionLen  int
	TopK            int
}

type AskService struct {
	params    ParamGetter
	moderator Moderator
	runner    AgentRunner
	toolbox   Toolbox
	state     StateReadWriter

	paramPrefix     string
	maxContextItems int
	maxQuestionLen  int
	topK            int

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	openaiModel  string
	systemPrompt string
}

type AskInput struct {
	Question       string
	ConversationID string
	// Visualize asks for chart data to be extracted from the agent trace.
	Visualize bool
}

type AskOutput struct {
	Steps          []domain.Step
	FinalAnswer    string
	Visualization  *domain.ChartData
	ConversationID string
}

func NewAskService(p ParamGetter, m Moderator, r AgentRunner, tb Toolbox, s StateReadWriter, settings Settings) (*AskService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: moderator must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: agent runner must not be nil")
	}
	if tb == nil {
		return nil, errors.New("usecase: toolbox must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	prefix := strings.TrimRight(strings.TrimSpace(settings.ParamPrefix), "/")
	if prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if settings.MaxContextItems <= 0 {
		settings.MaxContextItems = defaultMaxContext
	}
	if settings.MaxQuestionLen <= 0 {
		settings.MaxQuestionLen = defaultMaxQuestion
	}
	if settings.TopK <= 0 {
		settings.TopK = defaultTopK
	}
	return &AskService{
		params:          p,
		moderator:       m,
		runner:          r,
		toolbox:         tb,
		state:           s,
		paramPrefix:     prefix,
		maxContextItems: settings.MaxContextItems,
		maxQuestionLen:  settings.MaxQuestionLen,
		topK:            settings.TopK,
	}, nil
}

// Ask answers a question about the database. The returned steps are the
// agent's full trace, and Visualization is set only when requested and a
// chart could be read from the trace.
func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	start := time.Now()
	out, err := s.ask(ctx, in)
	metrics.RecordAsk(outcome(err), time.Since(start))
	return out, err
}

func (s *AskService) ask(ctx context.Context, in AskInput) (AskOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if len(question) > s.maxQuestionLen {
		return AskOutput{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return AskOutput{}, newError(ErrorInternal, "param_load_error", err)
	}

	convID := strings.TrimSpace(in.ConversationID)
	existingTurns := 0
	if convID == "" {
		convID = newUUID()
	} else {
		turnCount, err := s.state.GetConversationTurnCount(ctx, convID)
		if err != nil {
			return AskOutput{}, newError(ErrorInternal, "dynamodb_turn_count_error", err)
		}
		existingTurns = turnCount
		if existingTurns >= maxConversationTurns {
			return AskOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
		}
	}

	flagged, err := s.moderator.Moderate(ctx, question)
	if err != nil {
		if isRateLimited(err) {
			return AskOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return AskOutput{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return AskOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
	}

	history, err := s.state.GetHistory(ctx, convID, s.maxContextItems)
	if err != nil {
		return AskOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}

	s.cacheMu.RLock()
	model, systemPrompt := s.openaiModel, s.systemPrompt
	s.cacheMu.RUnlock()

	steps, err := s.runner.Run(ctx, agent.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		History:      historyMessages(history),
		Question:     question,
		Tools:        s.toolbox.Tools(model),
	})
	if err != nil {
		return AskOutput{}, agentError(err)
	}
	metrics.ObserveSteps(len(steps))

	answer := finalAnswer(steps)
	chart, kind := visualize.ExtractKind(in.Visualize, steps)
	if in.Visualize {
		metrics.RecordChart(string(kind))
	}

	if err := s.state.SaveCompletedTurn(ctx, domain.Turn{
		ConversationID: convID,
		Question:       question,
		Answer:         answer,
		Steps:          len(steps),
		Charted:        chart != nil,
		Turns:          existingTurns + 1,
	}); err != nil {
		return AskOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	return AskOutput{
		Steps:          steps,
		FinalAnswer:    answer,
		Visualization:  chart,
		ConversationID: convID,
	}, nil
}

func agentError(err error) *Error {
	switch {
	case errors.Is(err, agent.ErrIterationLimit):
		return newError(ErrorUpstream, "agent_iteration_limit", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorUpstream, "agent_timeout", err)
	case isRateLimited(err):
		return newError(ErrorRateLimited, "openai_rate_limited", err)
	default:
		return newError(ErrorUpstream, "openai_error", err)
	}
}

func (s *AskService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return errors.New("usecase: openai model parameter is empty")
	}
	template, err := s.optionalParam(ctx, "/prompts/sql_agent_system", defaultSystemTemplate)
	if err != nil {
		return fmt.Errorf("usecase: load system prompt: %w", err)
	}
	notes, err := s.optionalParam(ctx, "/prompts/notes", defaultNotes)
	if err != nil {
		return fmt.Errorf("usecase: load prompt notes: %w", err)
	}

	s.openaiModel = strings.TrimSpace(model)
	s.systemPrompt = buildSystemPrompt(promptContext{
		template: template,
		dialect:  s.toolbox.Dialect(),
		topK:     s.topK,
		schema:   s.toolbox.Schema(),
		notes:    notes,
	})
	s.cacheLoaded = true
	return nil
}

// optionalParam falls back to def only when the parameter does not exist.
func (s *AskService) optionalParam(ctx context.Context, name, def string) (string, error) {
	v, err := s.params.GetParameter(ctx, s.paramPrefix+name)
	if errors.Is(err, paramstore.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func isRateLimited(err error) bool {
	status, ok := upstreamStatusCode(err)
	return ok && status == http.StatusTooManyRequests
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ue *Error
	if errors.As(err, &ue) {
		return string(ue.Code)
	}
	return string(ErrorInternal)
}

var newUUID = func() string {
	return uuid.NewString()
}

// Stateless stands in for the conversation store when no table is
// configured. Every question starts a new conversation and nothing is kept.
type Stateless struct{}

func (Stateless) GetConversationTurnCount(context.Context, string) (int, error) { return 0, nil }

func (Stateless) GetHistory(context.Context, string, int) ([]domain.Message, error) {
	return nil, nil
}

func (Stateless) SaveCompletedTurn(context.Context, domain.Turn) error { return nil }
