// Package query answers questions about logged interactions.
package query

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
)

var (
	lastNPattern       = regexp.MustCompile(`last\s+(\d+)`)
	lastOnePattern     = regexp.MustCompile(`last\s+interaction`)
	withNamePattern    = regexp.MustCompile(`(?i)with\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)`)
	trailingQueryWords = regexp.MustCompile(`(?i)\s+(from|since|before|after|in|on|during|last|this|about|between)\b.*$`)
)

// PlanExtractor asks the oracle for a raw plan.
type PlanExtractor interface {
	Query(ctx context.Context, message string) (model.QueryPlan, error)
}

// Planner produces a plan for every request, oracle or not.
type Planner struct {
	extractor PlanExtractor
}

func NewPlanner(extractor PlanExtractor) *Planner {
	return &Planner{extractor: extractor}
}

// Plan asks the oracle and fills the gaps with lexical fallbacks. An oracle
// failure yields a plan built from the fallbacks alone.
func (p *Planner) Plan(ctx context.Context, request string) model.QueryPlan {
	plan, err := p.extractor.Query(ctx, request)
	if err != nil {
		logger.Warn().Err(err).Msg("query planning failed, using fallbacks only")
		plan = model.QueryPlan{}
	}
	return ApplyFallbacks(plan, request)
}

// ApplyFallbacks fills limit/sort from "last N" or "last interaction" and the
// contact name from "with <name>" when the plan leaves them absent.
func ApplyFallbacks(plan model.QueryPlan, request string) model.QueryPlan {
	lower := strings.ToLower(request)

	if plan.Limit == nil {
		if m := lastNPattern.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				plan.Limit = &n
				desc := model.SortDesc
				plan.Sort = &desc
			}
		} else if lastOnePattern.MatchString(lower) {
			one := 1
			plan.Limit = &one
			desc := model.SortDesc
			plan.Sort = &desc
		}
	}

	if plan.ContactName == nil || strings.TrimSpace(*plan.ContactName) == "" {
		plan.ContactName = nil
		if m := withNamePattern.FindStringSubmatch(request); m != nil {
			name := strings.TrimSpace(trailingQueryWords.ReplaceAllString(m[1], ""))
			if name != "" {
				plan.ContactName = &name
			}
		}
	}
	return plan
}
