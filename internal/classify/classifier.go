// Package classify assigns one intent label to each inbound message.
package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"
)

// Mode selects between the five-label classifier and the query/not-query variant.
type Mode string

const (
	ModeLabels Mode = "labels"
	ModeBinary Mode = "binary"
)

// Source records which stage decided a label.
type Source string

const (
	SourceRule     Source = "rule"
	SourceOracle   Source = "oracle"
	SourceFallback Source = "query_fallback"
	SourceDefault  Source = "default"
)

// Result is a classification and how it was reached.
type Result struct {
	Label  model.Label
	Source Source
	Rule   string
}

// Config tunes a Classifier. Zero values take defaults.
type Config struct {
	Mode          Mode
	Examples      int
	MaxTokens     int
	Rules         []Rule
	QueryPatterns []*regexp.Regexp
}

// Classifier combines forced rules, the oracle, a lexical query safety net
// and few-shot examples drawn from past corrections.
type Classifier struct {
	oracle      llm.Oracle
	corrections storage.CorrectionStore
	cfg         Config
}

func New(oracle llm.Oracle, corrections storage.CorrectionStore, cfg Config) *Classifier {
	if cfg.Mode == "" {
		cfg.Mode = ModeLabels
	}
	if cfg.Examples < 0 {
		cfg.Examples = 0
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 20
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.QueryPatterns == nil {
		cfg.QueryPatterns = DefaultQueryPatterns
	}
	return &Classifier{oracle: oracle, corrections: corrections, cfg: cfg}
}

// Classify never fails: any oracle problem degrades to unknown (or, in binary
// mode, to contacts_change) before the query safety net runs.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, r := range c.cfg.Rules {
		if r.Match(lower) {
			return Result{Label: r.Label, Source: SourceRule, Rule: r.Name}
		}
	}

	if c.cfg.Mode == ModeBinary {
		if c.IsQuery(ctx, message) {
			return Result{Label: model.LabelInteractionQuery, Source: SourceOracle}
		}
		return Result{Label: model.LabelContactsChange, Source: SourceDefault}
	}

	res := Result{Label: model.LabelUnknown, Source: SourceDefault}
	if label, ok := c.askLabel(ctx, message); ok {
		res = Result{Label: label, Source: SourceOracle}
	}

	if !res.Label.IsQuery() && MatchesQuery(c.cfg.QueryPatterns, lower) {
		logger.Debug().Str("oracle_label", string(res.Label)).Msg("query keywords override classification")
		return Result{Label: model.LabelInteractionQuery, Source: SourceFallback}
	}
	return res
}

// IsQuery is the binary variant: does the message ask to retrieve interactions?
func (c *Classifier) IsQuery(ctx context.Context, message string) bool {
	raw, err := c.oracle.Complete(ctx, llm.Request{
		Task:      "classify_query",
		System:    binarySystemPrompt + c.fewShot(ctx),
		User:      fmt.Sprintf("Message: %s\nReturn JSON: {\"label\": \"query\" or \"noquery\"}", message),
		JSON:      true,
		MaxTokens: 50,
	})

	isQuery := false
	if err == nil {
		var out struct {
			Label string `json:"label"`
		}
		if llm.DecodeObject(raw, &out) == nil {
			isQuery = strings.EqualFold(strings.TrimSpace(out.Label), "query")
		}
	} else {
		logger.Warn().Err(err).Msg("binary classification failed")
	}

	if !isQuery && MatchesQuery(c.cfg.QueryPatterns, strings.ToLower(message)) {
		return true
	}
	return isQuery
}

func (c *Classifier) askLabel(ctx context.Context, message string) (model.Label, bool) {
	raw, err := c.oracle.Complete(ctx, llm.Request{
		Task:      "classify",
		System:    labelSystemPrompt + c.fewShot(ctx),
		User:      strings.TrimSpace(message),
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("classification failed")
		return model.LabelUnknown, false
	}

	if label, ok := model.ParseLabel(raw); ok {
		return label, true
	}
	var out struct {
		Label string `json:"label"`
	}
	if llm.DecodeObject(raw, &out) == nil {
		if label, ok := model.ParseLabel(out.Label); ok {
			return label, true
		}
	}
	logger.Warn().Str("reply", raw).Msg("classifier replied outside the label set")
	return model.LabelUnknown, false
}

// fewShot renders up to cfg.Examples recent corrections whose labels differ.
// A store failure just means no examples.
func (c *Classifier) fewShot(ctx context.Context) string {
	if c.cfg.Examples == 0 || c.corrections == nil {
		return ""
	}

	// look a little further back so records with equal labels do not starve the window
	recent, err := c.corrections.RecentCorrections(ctx, c.cfg.Examples*4)
	if err != nil {
		logger.Warn().Err(err).Msg("loading correction examples failed")
		return ""
	}

	var lines []string
	for _, rec := range recent {
		if rec.OriginalLabel == rec.CorrectLabel {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d) Message: '%s' => correct_label: '%s' (original_label was '%s')",
			len(lines)+1, rec.Message, rec.CorrectLabel, rec.OriginalLabel))
		if len(lines) == c.cfg.Examples {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\nHere are some past corrected examples:\n" + strings.Join(lines, "\n")
}

const labelSystemPrompt = `You are a classification agent for a personal CRM.
The user will send a message about contacts or interactions.
You must respond ONLY with exactly one category (no extra text).
Valid categories:
- contacts_change: add, update or delete a contact's details
- query_contacts: look up stored details of a contact
- interaction: log something that happened with a contact (a call, a meeting, a chat)
- interaction_query: ask about past interactions
- unknown: anything else`

const binarySystemPrompt = `You are a classification assistant. The user might:
1) Provide details for a new contact or an interaction (like 'Had a chat with X...'), or
2) Ask a question to query existing interactions (like 'Show me my last 3 calls').
If the user is asking about retrieving or listing interactions, output 'query'.
If not, output 'noquery'.`
