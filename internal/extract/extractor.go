// Package extract turns free text into partially filled records using the oracle.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/normalize"
)

// ErrExtraction is returned whenever the oracle could not produce a usable record.
// Callers treat it as "nothing extracted this turn".
var ErrExtraction = errors.New("extraction failed")

// Action is what a contacts_change message asks for.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ContactResult is the contact shape: a draft plus the requested action.
type ContactResult struct {
	Action Action
	Draft  model.ContactDraft
}

// InteractionResult is the interaction shape.
type InteractionResult struct {
	ContactName string
	Note        string
}

// Config holds token budgets per call site.
type Config struct {
	ContactMaxTokens     int
	InteractionMaxTokens int
	QueryMaxTokens       int
	CountryCode          string
	Now                  func() time.Time
}

// Extractor is stateless apart from its configuration.
type Extractor struct {
	oracle llm.Oracle
	cfg    Config
}

func New(oracle llm.Oracle, cfg Config) *Extractor {
	if cfg.ContactMaxTokens <= 0 {
		cfg.ContactMaxTokens = 300
	}
	if cfg.InteractionMaxTokens <= 0 {
		cfg.InteractionMaxTokens = 200
	}
	if cfg.QueryMaxTokens <= 0 {
		cfg.QueryMaxTokens = 150
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = normalize.DefaultCountryCode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Extractor{oracle: oracle, cfg: cfg}
}

func (e *Extractor) object(ctx context.Context, task, system, message string, maxTokens int) (map[string]any, error) {
	raw, err := e.oracle.Complete(ctx, llm.Request{
		Task:      task,
		System:    system,
		User:      message,
		JSON:      true,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var out map[string]any
	if err := llm.DecodeObject(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return out, nil
}

// Contact extracts the six contact fields. Phone and birthday come back
// normalized; values that fail normalization are dropped.
func (e *Extractor) Contact(ctx context.Context, message string) (ContactResult, error) {
	obj, err := e.object(ctx, "extract_contact", contactSystemPrompt, message, e.cfg.ContactMaxTokens)
	if err != nil {
		return ContactResult{Action: ActionAdd}, err
	}

	draft := model.ContactDraft{
		Name:          llm.String(obj["name"]),
		Email:         llm.String(obj["email"]),
		FamilyMembers: llm.String(obj["family_members"]),
		Description:   llm.String(obj["description"]),
	}
	if raw := llm.String(obj["phone"]); raw != "" {
		draft.Phone, _ = normalize.PhoneWithCountry(raw, e.cfg.CountryCode)
	}
	if raw := llm.String(obj["birthday"]); raw != "" {
		draft.Birthday, _ = normalize.Date(raw)
	}

	action := ActionAdd
	switch Action(strings.ToLower(llm.String(obj["action"]))) {
	case ActionUpdate:
		action = ActionUpdate
	case ActionDelete:
		action = ActionDelete
	}

	return ContactResult{Action: action, Draft: draft}, nil
}

// Interaction extracts who the user interacted with and what happened.
func (e *Extractor) Interaction(ctx context.Context, message string) (InteractionResult, error) {
	obj, err := e.object(ctx, "extract_interaction", interactionSystemPrompt, message, e.cfg.InteractionMaxTokens)
	if err != nil {
		return InteractionResult{}, err
	}
	return InteractionResult{
		ContactName: llm.String(obj["contact_name"]),
		Note:        llm.String(obj["note"]),
	}, nil
}

// ContactName extracts the name fragment a contact lookup is about.
func (e *Extractor) ContactName(ctx context.Context, message string) (string, error) {
	obj, err := e.object(ctx, "extract_contact_name", contactNameSystemPrompt, message, e.cfg.InteractionMaxTokens)
	if err != nil {
		return "", err
	}
	return llm.String(obj["name"]), nil
}

// Query extracts a raw query plan. No lexical fallbacks are applied here.
func (e *Extractor) Query(ctx context.Context, message string) (model.QueryPlan, error) {
	system := fmt.Sprintf(querySystemPrompt, e.cfg.Now().Format(normalize.DateLayout))
	obj, err := e.object(ctx, "plan_query", system, message, e.cfg.QueryMaxTokens)
	if err != nil {
		return model.QueryPlan{}, err
	}

	var plan model.QueryPlan
	if name := llm.String(obj["contact_name"]); name != "" {
		plan.ContactName = &name
	}
	if start := llm.String(obj["start_date"]); start != "" {
		if _, ok := normalize.ParseDate(start); ok {
			plan.StartDate = &start
		}
	}
	if end := llm.String(obj["end_date"]); end != "" {
		if _, ok := normalize.ParseDate(end); ok {
			plan.EndDate = &end
		}
	}
	if limit, ok := llm.Int(obj["limit"]); ok {
		plan.Limit = &limit
	}
	switch model.SortOrder(strings.ToLower(llm.String(obj["sort"]))) {
	case model.SortAsc:
		asc := model.SortAsc
		plan.Sort = &asc
	case model.SortDesc:
		desc := model.SortDesc
		plan.Sort = &desc
	}
	return plan, nil
}
