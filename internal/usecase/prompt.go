package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"sql-question-agent/internal/domain"
)

const defaultSystemTemplate = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct {dialect} query to run, then look at the results of the query and return the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most {top_k} results.
You can order the results by a relevant column to return the most interesting examples in the database.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
You have access to tools for interacting with the database.
Only use the below tools. Only use the information returned by the below tools to construct your final answer.
You MUST double check your query before executing it. If you get an error while executing a query, rewrite the query and try again.

DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.

To start you should ALWAYS look at the tables in the database to see what you can query.
Do NOT skip this step.
Then you should query the schema of the most relevant tables.`

// Join hints for the work-order views. Replaced by the /prompts/notes
// parameter when it is set.
const defaultNotes = `When joining 'vw_Maximo_Locations' and 'vw_Maximo_WorkOrders', use 'vw_Maximo_Locations.location_description' to join with 'vw_Maximo_WorkOrders.location_description'.
When joining 'vw_Maximo_Asset' and 'vw_Maximo_WorkOrders', use 'vw_Maximo_Asset.assetnum' to join with 'vw_Maximo_WorkOrders.asset_id'.`

type promptContext struct {
	template string
	dialect  string
	topK     int
	schema   string
	notes    string
}

func buildSystemPrompt(ctx promptContext) string {
	prompt := strings.NewReplacer(
		"{dialect}", ctx.dialect,
		"{top_k}", strconv.Itoa(ctx.topK),
	).Replace(strings.TrimSpace(ctx.template))

	var b strings.Builder
	b.WriteString(prompt)
	if ctx.schema != "" && ctx.dialect != "sqlite" {
		writeNote(&b, fmt.Sprintf("All table and view names must be fully qualified with the schema prefix '%s.' in the SQL query.", ctx.schema))
	}
	for _, line := range strings.Split(ctx.notes, "\n") {
		writeNote(&b, line)
	}
	return b.String()
}

func writeNote(b *strings.Builder, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	note = strings.TrimSpace(strings.TrimPrefix(note, "Note:"))
	b.WriteString("\n\nNote: ")
	b.WriteString(note)
}

// historyMessages replays completed turns as question/answer pairs. The
// intermediate tool traffic of earlier turns is not kept.
func historyMessages(history []domain.Message) []domain.ChatMessage {
	var out []domain.ChatMessage
	for _, m := range history {
		if m.Status != statusComplete {
			continue
		}
		question := strings.TrimSpace(m.Question)
		answer := strings.TrimSpace(m.Answer)
		if question == "" || answer == "" {
			continue
		}
		out = append(out,
			domain.ChatMessage{Role: "user", Content: question},
			domain.ChatMessage{Role: "assistant", Content: answer},
		)
	}
	return out
}

// finalAnswer is the content of the last step of the trace.
func finalAnswer(steps []domain.Step) string {
	if len(steps) == 0 {
		return noAnswer
	}
	if answer := strings.TrimSpace(steps[len(steps)-1].Content); answer != "" {
		return answer
	}
	return noAnswer
}
