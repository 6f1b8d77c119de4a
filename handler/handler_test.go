package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"sql-question-agent/internal/domain"
	"sql-question-agent/internal/usecase"
)

type stubUseCase struct {
	out   usecase.AskOutput
	err   error
	in    usecase.AskInput
	calls int
}

func (s *stubUseCase) Ask(_ context.Context, in usecase.AskInput) (usecase.AskOutput, error) {
	s.calls++
	s.in = in
	return s.out, s.err
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/ask",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newHandler(t *testing.T, uc AskUseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc)
	require.NoError(t, err)
	return h
}

var chartOutput = usecase.AskOutput{
	Steps: []domain.Step{
		{Type: domain.StepAI, Content: `sql_db_query {"query":"SELECT ..."}`},
		{Type: domain.StepTool, Content: "[(1344, 6, 2023), (951, 7, 2023)]"},
		{Type: domain.StepAI, Content: "June had 1,344 and July had 951."},
	},
	FinalAnswer:    "June had 1,344 and July had 951.",
	Visualization:  &domain.ChartData{Labels: []string{"June 2023", "July 2023"}, Values: []float64{1344, 951}},
	ConversationID: "conv-1",
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: chartOutput}
	h := newHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"question":"Work orders per month?","conversationId":"conv-1","visualize":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.AskInput{Question: "Work orders per month?", ConversationID: "conv-1", Visualize: true}, uc.in)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[askResponse](t, resp.Body)
	require.Equal(t, chartOutput.Steps, out.Steps)
	require.Equal(t, "June had 1,344 and July had 951.", out.FinalAnswer)
	require.Equal(t, chartOutput.Visualization, out.Visualization)
	require.Equal(t, "conv-1", out.ConversationID)
}

func TestHandle_WireFormat(t *testing.T) {
	h := newHandler(t, &stubUseCase{out: usecase.AskOutput{FinalAnswer: "No answer generated.", ConversationID: "c"}})

	resp, err := h.Handle(context.Background(), makeEvent(`{"question":"q"}`))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &raw))
	require.JSONEq(t, `[]`, string(raw["steps"]))
	require.JSONEq(t, `null`, string(raw["visualization"]))
	require.JSONEq(t, `"No answer generated."`, string(raw["final_answer"]))

	h = newHandler(t, &stubUseCase{out: chartOutput})
	resp, err = h.Handle(context.Background(), makeEvent(`{"question":"q","visualize":true}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &raw))
	require.JSONEq(t, `{"labels":["June 2023","July 2023"],"values":[1344,951]}`, string(raw["visualization"]))
	require.Contains(t, string(raw["steps"]), `"type":"Tool Message"`)
}

func TestHandle_Base64Body(t *testing.T) {
	uc := &stubUseCase{out: chartOutput}
	h := newHandler(t, uc)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"question":"encoded"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "encoded", uc.in.Question)

	event = makeEvent("%%%")
	event.IsBase64Encoded = true
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h := newHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, uc.calls)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.NotEmpty(t, out.Message)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_question"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "invalid question", err: &usecase.Error{Code: usecase.ErrorInvalidQuestion, Reason: "moderation_flagged"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidQuestion)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "openai_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "agent_iteration_limit"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "dynamodb_write_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandler(t, &stubUseCase{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(`{"question":"Work orders per month?"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.NotContains(t, resp.Body, "boom")
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newHandler(t, &stubUseCase{out: chartOutput})

	event := makeEvent(`{"question":"q"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestRouter_Ask(t *testing.T) {
	uc := &stubUseCase{out: chartOutput}
	srv := httptest.NewServer(newHandler(t, uc).Router(nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/ask", strings.NewReader(`{"question":"Work orders per month?","visualize":true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", "corr-9")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-9", resp.Header.Get("X-Correlation-Id"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := parseBody[askResponse](t, string(raw))
	require.Equal(t, "conv-1", out.ConversationID)
	require.True(t, uc.in.Visualize)
}

func TestRouter_AskErrorsKeepStatus(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "openai_rate_limited"}}
	srv := httptest.NewServer(newHandler(t, uc).Router(nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"question":"q"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouter_AskRejectsOversizedBody(t *testing.T) {
	uc := &stubUseCase{}
	srv := httptest.NewServer(newHandler(t, uc).Router(nil))
	defer srv.Close()

	body := `{"question":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Zero(t, uc.calls)
}

func TestRouter_IndexAndStatic(t *testing.T) {
	srv := httptest.NewServer(newHandler(t, &stubUseCase{}).Router(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, string(page), `<script src="/static/script.js"></script>`)

	resp, err = http.Get(srv.URL + "/static/script.js")
	require.NoError(t, err)
	script, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(script), "fetch('/ask'")

	resp, err = http.Get(srv.URL + "/ask")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	srv := httptest.NewServer(newHandler(t, &stubUseCase{}).Router(stubHealth{}))
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	srv.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	srv = httptest.NewServer(newHandler(t, &stubUseCase{}).Router(stubHealth{err: errors.New("login failed")}))
	defer srv.Close()
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_Metrics(t *testing.T) {
	srv := httptest.NewServer(newHandler(t, &stubUseCase{}).Router(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `route="/healthz"`)
}
