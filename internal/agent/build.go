package agent

import (
	"time"

	"sms_crm_agent/internal/classify"
	"sms_crm_agent/internal/conversation"
	"sms_crm_agent/internal/extract"
	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/query"
	"sms_crm_agent/internal/resolve"
	"sms_crm_agent/internal/storage"
)

// Options tunes Build. Zero values take the package defaults.
type Options struct {
	ClassifierMode     classify.Mode
	CorrectionExamples int
	CountryCode        string
	SummaryMaxTokens   int
	Now                func() time.Time
}

// Build wires the extractor, classifier, contact flow, resolver, query engine
// and the four intent handlers around one oracle and one repository.
func Build(oracle llm.Oracle, repo storage.Repository, sessions conversation.Store, opts Options) (*Processor, error) {
	extractor := extract.New(oracle, extract.Config{
		CountryCode: opts.CountryCode,
		Now:         opts.Now,
	})
	classifier := classify.New(oracle, repo, classify.Config{
		Mode:     opts.ClassifierMode,
		Examples: opts.CorrectionExamples,
	})
	machine := conversation.NewMachine(extractor, repo)
	resolver := resolve.New(repo)
	engine := query.NewEngine(
		query.NewPlanner(extractor),
		resolver,
		repo,
		query.NewSummarizer(oracle, opts.SummaryMaxTokens),
	)

	p := NewProcessor(classifier, sessions, machine)
	handlers := map[model.Label]Handler{
		model.LabelContactsChange:   NewContactsHandler(extractor, machine, resolver, repo),
		model.LabelInteraction:      NewInteractionHandler(extractor, resolver, repo),
		model.LabelInteractionQuery: NewInteractionQueryHandler(engine),
		model.LabelQueryContacts:    NewContactQueryHandler(extractor, resolver),
	}
	for label, h := range handlers {
		if err := p.RegisterHandler(label, h); err != nil {
			return nil, err
		}
	}
	return p, nil
}
