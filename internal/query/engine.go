package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/normalize"
	"sms_crm_agent/internal/resolve"
	"sms_crm_agent/internal/storage"
)

const unknownContactName = "Unknown"

// Result is a finished query: the reply plus what produced it.
type Result struct {
	Reply string
	Plan  model.QueryPlan
	Rows  []model.Interaction
}

// Engine plans, executes and summarizes interaction queries.
type Engine struct {
	planner      *Planner
	resolver     *resolve.Resolver
	contacts     storage.ContactStore
	interactions storage.InteractionStore
	summarizer   *Summarizer
}

func NewEngine(planner *Planner, resolver *resolve.Resolver, repo storage.Repository, summarizer *Summarizer) *Engine {
	return &Engine{
		planner:      planner,
		resolver:     resolver,
		contacts:     repo,
		interactions: repo,
		summarizer:   summarizer,
	}
}

// Run answers request. A contact name that matches nobody ends the query
// without touching the interactions table.
func (e *Engine) Run(ctx context.Context, request string) (Result, error) {
	plan := e.planner.Plan(ctx, request)
	res := Result{Plan: plan}

	filter, reply, err := e.filter(ctx, plan)
	if err != nil {
		return res, err
	}
	if reply != "" {
		res.Reply = reply
		return res, nil
	}

	rows, err := e.interactions.FindInteractions(ctx, filter)
	if err != nil {
		return res, fmt.Errorf("running interaction query: %w", err)
	}
	if err := e.enrich(ctx, rows); err != nil {
		return res, err
	}

	logger.Debug().Int("rows", len(rows)).Msg("interaction query executed")
	res.Rows = rows
	res.Reply = e.summarizer.Summarize(ctx, request, rows)
	return res, nil
}

func (e *Engine) filter(ctx context.Context, plan model.QueryPlan) (model.InteractionFilter, string, error) {
	f := model.InteractionFilter{Sort: plan.SortOrDefault()}
	if plan.Limit != nil {
		f.Limit = *plan.Limit
	}

	if plan.ContactName != nil {
		found, err := e.resolver.Resolve(ctx, *plan.ContactName)
		if err != nil {
			return f, "", err
		}
		if found.Kind == resolve.NoMatch {
			return f, fmt.Sprintf("No contacts found matching %s.", *plan.ContactName), nil
		}
		f.ContactIDs = found.IDs()
	}

	if plan.StartDate != nil {
		if t, ok := normalize.ParseDate(*plan.StartDate); ok {
			f.Start = &t
		}
	}
	if plan.EndDate != nil {
		if t, ok := normalize.ParseDate(*plan.EndDate); ok {
			if isDateOnly(*plan.EndDate) {
				// a bare date covers the whole day
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			f.End = &t
		}
	}
	return f, "", nil
}

func (e *Engine) enrich(ctx context.Context, rows []model.Interaction) error {
	if len(rows) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var ids []string
	for _, r := range rows {
		if !seen[r.ContactID] {
			seen[r.ContactID] = true
			ids = append(ids, r.ContactID)
		}
	}

	contacts, err := e.contacts.GetContactsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading contact names: %w", err)
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.ID] = c.Name
	}

	for i := range rows {
		if name, ok := names[rows[i].ContactID]; ok {
			rows[i].ContactName = name
		} else {
			rows[i].ContactName = unknownContactName
		}
	}
	return nil
}

func isDateOnly(s string) bool {
	return !strings.Contains(s, ":")
}
