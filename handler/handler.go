package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"sql-question-agent/internal/domain"
	"sql-question-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type AskUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type Handler struct {
	uc     AskUseCase
	logger *slog.Logger
}

type askRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId,omitempty"`
	Visualize      bool   `json:"visualize,omitempty"`
}

type askResponse struct {
	Steps          []domain.Step     `json:"steps"`
	FinalAnswer    string            `json:"final_answer"`
	Visualization  *domain.ChartData `json:"visualization"`
	ConversationID string            `json:"conversationId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(uc AskUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

// Handle answers an API Gateway proxy request for POST /ask. Failures are
// reported in the response; the returned error is always nil so Lambda does
// not retry.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.fail(ctx, correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body_encoding", Err: err}), nil
		}
		body = string(decoded)
	}

	var in askRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return h.fail(ctx, correlationID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}), nil
	}

	out, err := h.uc.Ask(ctx, usecase.AskInput{
		Question:       in.Question,
		ConversationID: in.ConversationID,
		Visualize:      in.Visualize,
	})
	if err != nil {
		return h.fail(ctx, correlationID, err), nil
	}

	steps := out.Steps
	if steps == nil {
		steps = []domain.Step{}
	}
	return jsonResponse(http.StatusOK, correlationID, askResponse{
		Steps:          steps,
		FinalAnswer:    out.FinalAnswer,
		Visualization:  out.Visualization,
		ConversationID: out.ConversationID,
	}), nil
}

func (h *Handler) fail(ctx context.Context, correlationID string, err error) events.APIGatewayProxyResponse {
	code := usecase.ErrorInternal
	reason := "unexpected_error"
	var ue *usecase.Error
	if errors.As(err, &ue) {
		code = ue.Code
		reason = ue.Reason
	}

	status := code.HTTPStatus()
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "ask request failed",
		"correlationId", correlationID,
		"status", status,
		"code", code,
		"reason", reason,
		"err", err,
	)

	return jsonResponse(status, correlationID, errorResponse{Error: string(code), Message: code.Message()})
}

func jsonResponse(status int, correlationID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"Something went wrong."}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks a header up case-insensitively; API Gateway passes
// headers through as the client sent them.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
