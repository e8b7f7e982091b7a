package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"sms_crm_agent/internal/classify"
	"sms_crm_agent/internal/conversation"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
)

// Processor owns the per-turn pipeline.
type Processor struct {
	classifier *classify.Classifier
	sessions   conversation.Store
	locker     *conversation.Locker
	machine    *conversation.Machine
	handlers   map[model.Label]Handler
}

// NewProcessor creates a processor with no handlers registered.
func NewProcessor(classifier *classify.Classifier, sessions conversation.Store, machine *conversation.Machine) *Processor {
	return &Processor{
		classifier: classifier,
		sessions:   sessions,
		locker:     conversation.NewLocker(),
		machine:    machine,
		handlers:   make(map[model.Label]Handler),
	}
}

// RegisterHandler routes label to h, replacing any previous handler.
func (p *Processor) RegisterHandler(label model.Label, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if _, ok := model.ParseLabel(string(label)); !ok {
		return fmt.Errorf("unknown label: %s", label)
	}
	p.handlers[label] = h
	return nil
}

// HandleMessage produces the reply for one inbound message. It never fails:
// errors and panics become the generic apology.
func (p *Processor) HandleMessage(ctx context.Context, sender, body string) (reply string) {
	log := logger.With(sender)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("turn panicked")
			reply = ReplyError
		}
	}()

	unlock := p.locker.Lock(sender)
	defer unlock()

	reply, err := p.turn(ctx, sender, strings.TrimSpace(body))
	if err != nil {
		log.Error().Err(err).Msg("turn failed")
		return ReplyError
	}

	log.Info().Dur("elapsed", time.Since(start)).Int("reply_len", len(reply)).Msg("turn handled")
	return reply
}

func (p *Processor) turn(ctx context.Context, sender, message string) (string, error) {
	if message == "" {
		return ReplyEmpty, nil
	}

	session, err := p.loadSession(ctx, sender)
	if err != nil {
		return "", err
	}

	if target, isFix, valid := classify.ParseFix(message); isFix {
		if !valid {
			return classify.FixHelp, nil
		}
		return p.correct(ctx, session, target)
	}

	if conversation.IsAffirmative(message) || conversation.IsNegative(message) {
		if !session.AwaitingConfirmation() {
			return ReplyNothingConfirm, nil
		}
		out := p.machine.Step(ctx, session.Flow, message)
		session.Flow = out.Flow
		return out.Reply, p.saveSession(ctx, session)
	}

	res := p.classifier.Classify(ctx, message)
	log := logger.With(sender)
	log.Debug().
		Str("label", string(res.Label)).
		Str("source", string(res.Source)).
		Str("rule", res.Rule).
		Msg("message classified")

	label := res.Label
	if session.Flow != nil && (label == model.LabelContactsChange || label == model.LabelUnknown) {
		// an open add-contact flow absorbs follow-up data
		label = model.LabelContactsChange
	}
	session.Last = &model.Classification{Message: message, Label: label, FlowBefore: copyFlow(session.Flow)}

	reply, err := p.dispatch(ctx, &Turn{Sender: sender, Message: message, Label: label, Session: session})
	if err != nil {
		return "", err
	}
	return reply, p.saveSession(ctx, session)
}

// correct applies a FIX: command: audit, re-dispatch, forget the classification.
func (p *Processor) correct(ctx context.Context, session *model.Session, target model.Label) (string, error) {
	if session.Last == nil {
		return ReplyNothingToFix, nil
	}
	last := *session.Last

	if err := p.classifier.RecordCorrection(ctx, last, target); err != nil {
		return "", err
	}
	log := logger.With(session.Sender)
	log.Info().
		Str("from", string(last.Label)).
		Str("to", string(target)).
		Msg("classification corrected")

	session.Last = nil
	switch {
	case target == model.LabelContactsChange:
		session.Flow = nil
	case last.Label == model.LabelContactsChange:
		// undo what the misrouted message did to the flow
		session.Flow = copyFlow(last.FlowBefore)
	}

	reply, err := p.dispatch(ctx, &Turn{Sender: session.Sender, Message: last.Message, Label: target, Session: session})
	if err != nil {
		return "", err
	}
	return reply, p.saveSession(ctx, session)
}

func (p *Processor) dispatch(ctx context.Context, turn *Turn) (string, error) {
	h, ok := p.handlers[turn.Label]
	if !ok {
		return ReplyUnknown, nil
	}
	reply, err := h.Handle(ctx, turn)
	if err != nil {
		return "", fmt.Errorf("handling %s: %w", turn.Label, err)
	}
	return reply, nil
}

func (p *Processor) loadSession(ctx context.Context, sender string) (*model.Session, error) {
	session, err := p.sessions.Load(ctx, sender)
	if errors.Is(err, conversation.ErrNoSession) {
		return &model.Session{Sender: sender}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

func (p *Processor) saveSession(ctx context.Context, session *model.Session) error {
	if session.IsEmpty() {
		if err := p.sessions.Delete(ctx, session.Sender); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		return nil
	}
	if err := p.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func copyFlow(flow *model.ContactFlow) *model.ContactFlow {
	if flow == nil {
		return nil
	}
	c := *flow
	return &c
}
