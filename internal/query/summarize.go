package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"

	"github.com/bytedance/sonic"
)

// ReplyNoResults is the deterministic reply for an empty result set.
const ReplyNoResults = "No matching interactions found."

const summarySystemPrompt = `You are a summarization assistant. You have a list of interactions from a personal CRM.
Each item has "note", "created_at" and "contact_name". Summarize them in a helpful way for a text message.
Keep it short but descriptive. If there are no items, say so.`

type summaryRow struct {
	Note        string `json:"note"`
	CreatedAt   string `json:"created_at"`
	ContactName string `json:"contact_name"`
}

type summaryPayload struct {
	Query   string       `json:"query"`
	Results []summaryRow `json:"results"`
}

// Summarizer renders results as a reply, through the oracle when it can.
type Summarizer struct {
	oracle    llm.Oracle
	maxTokens int
}

func NewSummarizer(oracle llm.Oracle, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Summarizer{oracle: oracle, maxTokens: maxTokens}
}

func (s *Summarizer) Summarize(ctx context.Context, request string, rows []model.Interaction) string {
	payload := summaryPayload{Query: request, Results: make([]summaryRow, 0, len(rows))}
	for _, r := range rows {
		payload.Results = append(payload.Results, summaryRow{
			Note:        r.Note,
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
			ContactName: r.ContactName,
		})
	}

	body, err := sonic.MarshalString(payload)
	if err == nil && s.oracle != nil {
		reply, err := s.oracle.Complete(ctx, llm.Request{
			Task:      "summarize",
			System:    summarySystemPrompt,
			User:      body,
			MaxTokens: s.maxTokens,
		})
		if err == nil {
			return reply
		}
		logger.Warn().Err(err).Msg("summary failed, falling back to plain listing")
	}
	return FallbackSummary(rows)
}

// FallbackSummary lists rows as "- <timestamp>: <name> => <note>".
func FallbackSummary(rows []model.Interaction) string {
	if len(rows) == 0 {
		return ReplyNoResults
	}
	lines := []string{"Here are the results:"}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s => %s", r.CreatedAt.Format(time.RFC3339), r.ContactName, r.Note))
	}
	return strings.Join(lines, "\n")
}
