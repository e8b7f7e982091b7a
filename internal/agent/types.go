// Package agent runs one inbound message through classification, routing and
// the intent handlers, and produces exactly one reply.
package agent

import (
	"context"

	"sms_crm_agent/internal/model"
)

// Turn is the mutable context a handler works on. Handlers may change
// Session.Flow; the processor persists the session afterwards.
type Turn struct {
	Sender  string
	Message string
	Label   model.Label
	Session *model.Session
}

// Handler serves one intent label.
type Handler interface {
	Handle(ctx context.Context, turn *Turn) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, turn *Turn) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, turn *Turn) (string, error) {
	return f(ctx, turn)
}

// Replies that do not depend on handler state.
const (
	ReplyError          = "Sorry, there was an error. Please try again."
	ReplyUnknown        = "Sorry, I didn't understand that. You can add a contact, log an interaction (\"Had coffee with Sarah...\"), or ask about past interactions (\"What did I discuss with John?\")."
	ReplyNothingToFix   = "No previous classification to fix. Please try again."
	ReplyNothingConfirm = "There's nothing to confirm right now."
	ReplyEmpty          = "Please send a message."
)
